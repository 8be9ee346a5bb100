package utils

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/wahook/pkg/constant"
)

func LoadEnv(log zerolog.Logger) {
	err := godotenv.Load()
	if err != nil {
		// Environment variables can still come from the process environment
		log.Info().Msg(".env file not found, using system environment variables")
	}
}

// QueryInt reads an integer query parameter. Missing or empty values yield
// def; anything else that is not an integer in [min, max] is an error.
func QueryInt(c *gin.Context, name string, def, min, max int) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min || n > max {
		return 0, fmt.Errorf(constant.INVALID_QUERY, name)
	}
	return n, nil
}

// QueryBool reads an optional boolean query parameter. Accepts the forms
// strconv.ParseBool does plus yes/no.
func QueryBool(c *gin.Context, name string) (*bool, error) {
	raw := strings.ToLower(strings.TrimSpace(c.Query(name)))
	if raw == "" {
		return nil, nil
	}
	switch raw {
	case "yes", "y":
		v := true
		return &v, nil
	case "no", "n":
		v := false
		return &v, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf(constant.INVALID_QUERY, name)
	}
	return &v, nil
}
