package routes

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/wahook/pkg/constant"
	"github.com/wahook/pkg/domains/events"
	"github.com/wahook/pkg/dtos"
	"github.com/wahook/pkg/utils"
)

const maxDays = 3650

var messageTypes = map[string]bool{
	constant.CONTENT_TEXT:     true,
	constant.CONTENT_STICKER:  true,
	constant.CONTENT_IMAGE:    true,
	constant.CONTENT_VIDEO:    true,
	constant.CONTENT_AUDIO:    true,
	constant.CONTENT_DOCUMENT: true,
	constant.CONTENT_LOCATION: true,
	constant.CONTENT_UNKNOWN:  true,
}

func DBRoutes(r *gin.RouterGroup, s events.Service) {
	r.GET("/messages", recentMessages(s))
	r.GET("/search", search(s))
	r.GET("/stats/daily", dailyStats(s))
	r.GET("/stats/contacts", contactStats(s))
	r.GET("/info", storeInfo(s))
}

// @Summary Most recent stored messages
// @Tags db
// @Produce json
// @Param limit query int false "max rows" default(50)
// @Success 200 {object} dtos.MessagesDTO
// @Router /db/messages [get]
func recentMessages(s events.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		limit, err := utils.QueryInt(c, "limit", events.DefaultLimit, 1, events.MaxLimit)
		if err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		messages, err := s.RecentMessages(c, limit)
		if err != nil {
			c.JSON(500, gin.H{"error": constant.STORE_UNAVAILABLE})
			return
		}

		c.JSON(200, dtos.MessagesDTO{Count: len(messages), Messages: nonNil(messages)})
	}
}

// @Summary Search stored messages
// @Tags db
// @Produce json
// @Param text query string false "case-insensitive text or caption match"
// @Param contact_id query string false "sender or chat id"
// @Param message_type query string false "content type"
// @Param from_me query bool false "sent by this account"
// @Param is_group query bool false "group chat"
// @Param days_back query int false "trailing days window"
// @Param limit query int false "max rows" default(50)
// @Success 200 {object} dtos.MessagesDTO
// @Router /db/search [get]
func search(s events.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		filter, err := parseSearchFilter(c)
		if err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		messages, err := s.Search(c, filter)
		if err != nil {
			c.JSON(500, gin.H{"error": constant.STORE_UNAVAILABLE})
			return
		}

		c.JSON(200, dtos.MessagesDTO{Count: len(messages), Messages: nonNil(messages)})
	}
}

func parseSearchFilter(c *gin.Context) (events.SearchFilter, error) {
	var filter events.SearchFilter
	var err error

	filter.Text = c.Query("text")
	filter.ContactID = strings.TrimSpace(c.Query("contact_id"))
	filter.MessageType = strings.ToLower(strings.TrimSpace(c.Query("message_type")))
	if filter.MessageType != "" && !messageTypes[filter.MessageType] {
		return filter, fmt.Errorf(constant.INVALID_QUERY, "message_type")
	}
	if filter.FromMe, err = utils.QueryBool(c, "from_me"); err != nil {
		return filter, err
	}
	if filter.IsGroup, err = utils.QueryBool(c, "is_group"); err != nil {
		return filter, err
	}
	if filter.DaysBack, err = utils.QueryInt(c, "days_back", 0, 0, maxDays); err != nil {
		return filter, err
	}
	if filter.Limit, err = utils.QueryInt(c, "limit", events.DefaultLimit, 1, events.MaxLimit); err != nil {
		return filter, err
	}
	return filter, nil
}

// @Summary Per-day totals over the trailing window
// @Tags db
// @Produce json
// @Param days query int false "window in days" default(7)
// @Success 200 {object} dtos.DailyStatsDTO
// @Router /db/stats/daily [get]
func dailyStats(s events.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		days, err := utils.QueryInt(c, "days", 7, 1, maxDays)
		if err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		stats, err := s.DailyStats(c, days)
		if err != nil {
			c.JSON(500, gin.H{"error": constant.STORE_UNAVAILABLE})
			return
		}

		var total int64
		for _, d := range stats {
			total += d.Total
		}
		if stats == nil {
			stats = []events.DayStat{}
		}
		c.JSON(200, dtos.DailyStatsDTO{Days: days, Total: total, Stats: stats})
	}
}

// @Summary Private-chat contacts ranked by message count
// @Tags db
// @Produce json
// @Param limit query int false "max contacts" default(50)
// @Success 200 {object} dtos.ContactStatsDTO
// @Router /db/stats/contacts [get]
func contactStats(s events.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		limit, err := utils.QueryInt(c, "limit", events.DefaultLimit, 1, events.MaxLimit)
		if err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		contacts, err := s.ContactStats(c, limit)
		if err != nil {
			c.JSON(500, gin.H{"error": constant.STORE_UNAVAILABLE})
			return
		}

		if contacts == nil {
			contacts = []events.ContactStat{}
		}
		c.JSON(200, dtos.ContactStatsDTO{Count: len(contacts), Contacts: contacts})
	}
}

// @Summary Store totals and size
// @Tags db
// @Produce json
// @Success 200 {object} events.StoreInfo
// @Router /db/info [get]
func storeInfo(s events.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		info, err := s.Info(c)
		if err != nil {
			c.JSON(500, gin.H{"error": constant.STORE_UNAVAILABLE})
			return
		}
		c.JSON(200, info)
	}
}

func nonNil(messages []events.Message) []events.Message {
	if messages == nil {
		return []events.Message{}
	}
	return messages
}
