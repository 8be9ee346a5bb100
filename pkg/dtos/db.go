package dtos

import (
	"github.com/wahook/pkg/domains/events"
)

type MessagesDTO struct {
	Count    int              `json:"count"`
	Messages []events.Message `json:"messages"`
}

type DailyStatsDTO struct {
	Days  int              `json:"days"`
	Total int64            `json:"total"`
	Stats []events.DayStat `json:"stats"`
}

type ContactStatsDTO struct {
	Count    int                  `json:"count"`
	Contacts []events.ContactStat `json:"contacts"`
}
