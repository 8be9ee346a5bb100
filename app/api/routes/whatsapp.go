package routes

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wahook/pkg/constant"
	"github.com/wahook/pkg/domains/whatsapp"
	"github.com/wahook/pkg/dtos"
	"github.com/wahook/pkg/utils"
)

func WhatsAppRoutes(r *gin.RouterGroup, s whatsapp.Service) {
	r.GET("/status", getStatus(s))
	r.GET("/qr-code", getQRCode(s))
	r.POST("/connect", connect(s))
	r.POST("/disconnect", disconnect(s))
	r.POST("/send-message", sendMessage(s))
	r.POST("/send-media", sendMediaMessage(s))
	r.POST("/send-reaction", sendReaction(s))
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, whatsapp.ErrDisabled):
		return 503
	case errors.Is(err, whatsapp.ErrNotConnected), errors.Is(err, whatsapp.ErrNotLoggedIn):
		return 409
	default:
		return 500
	}
}

// @Summary Messaging connection status
// @Tags whatsapp
// @Produce json
// @Success 200 {object} dtos.WhatsAppStatusDTO
// @Router /whatsapp/status [get]
func getStatus(s whatsapp.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		c.JSON(200, dtos.WhatsAppStatusDTO{
			Status: s.Status(c),
		})
	}
}

func connect(s whatsapp.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		if err := s.Connect(c); err != nil {
			c.JSON(errorStatus(err), gin.H{"error": err.Error()})
			return
		}

		c.JSON(200, gin.H{
			"message": constant.WHATSAPP_CONNECTED,
		})
	}
}

func disconnect(s whatsapp.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		if err := s.Disconnect(c); err != nil {
			c.JSON(errorStatus(err), gin.H{"error": err.Error()})
			return
		}

		c.JSON(200, gin.H{
			"message": constant.WHATSAPP_DISCONNECTED,
		})
	}
}

func getQRCode(s whatsapp.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		qrCode, err := s.QRCode(c)
		if err != nil {
			c.JSON(errorStatus(err), gin.H{"error": err.Error()})
			return
		}
		if qrCode == "" {
			c.JSON(200, gin.H{"message": constant.WHATSAPP_CONNECTED})
			return
		}

		c.JSON(200, gin.H{
			"qr_code": qrCode,
			"message": constant.QR_CODE_GENERATED,
		})
	}
}

func sendMessage(s whatsapp.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		var req dtos.SendMessageDTO
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": constant.INVALID_REQUEST})
			return
		}

		response, err := s.SendText(c, req)
		if err != nil {
			c.JSON(errorStatus(err), gin.H{"error": err.Error(), "success": false})
			return
		}

		c.JSON(200, gin.H{
			"message": constant.MESSAGE_SENT,
			"data":    response,
		})
	}
}

func sendMediaMessage(s whatsapp.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		phoneNumber := c.PostForm("phone_number")
		mimeType := c.PostForm("mime_type")
		if !utils.ValidPhone(phoneNumber) || mimeType == "" {
			c.JSON(400, gin.H{"error": "phone_number and mime_type are required"})
			return
		}

		file, header, err := c.Request.FormFile("media")
		if err != nil {
			c.JSON(400, gin.H{"error": "media file is required"})
			return
		}
		defer file.Close()

		mediaData, err := io.ReadAll(file)
		if err != nil {
			c.JSON(500, gin.H{"error": constant.FILE_READ_FAILED})
			return
		}

		req := dtos.SendMediaMessageDTO{
			PhoneNumber: phoneNumber,
			Caption:     c.PostForm("caption"),
			FileName:    header.Filename,
			MediaData:   mediaData,
			MimeType:    mimeType,
		}
		if height := c.PostForm("height"); height != "" {
			h, err := strconv.ParseUint(height, 10, 32)
			if err != nil {
				c.JSON(400, gin.H{"error": fmt.Sprintf(constant.INVALID_QUERY, "height")})
				return
			}
			req.Height = uint32(h)
		}
		if width := c.PostForm("width"); width != "" {
			w, err := strconv.ParseUint(width, 10, 32)
			if err != nil {
				c.JSON(400, gin.H{"error": fmt.Sprintf(constant.INVALID_QUERY, "width")})
				return
			}
			req.Width = uint32(w)
		}

		response, err := s.SendMedia(c, req)
		if err != nil {
			c.JSON(errorStatus(err), gin.H{"error": err.Error(), "success": false})
			return
		}

		c.JSON(200, gin.H{
			"message": fmt.Sprintf("%s. File: %s", constant.MEDIA_SENT, header.Filename),
			"data":    response,
		})
	}
}

func sendReaction(s whatsapp.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		var req dtos.SendReactionDTO
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": constant.INVALID_REQUEST})
			return
		}

		response, err := s.SendReaction(c, req)
		if err != nil {
			c.JSON(errorStatus(err), gin.H{"error": err.Error(), "success": false})
			return
		}

		c.JSON(200, gin.H{
			"message": constant.REACTION_SENT,
			"data":    response,
		})
	}
}
