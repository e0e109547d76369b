package model

import "time"

type ScheduleStatus string

const (
	ScheduleStatusScheduled ScheduleStatus = "scheduled"
	ScheduleStatusConfirmed ScheduleStatus = "confirmed"
	ScheduleStatusDone      ScheduleStatus = "done"
	ScheduleStatusCanceled  ScheduleStatus = "canceled"
)

// Schedule is a planned service or event with a responsible member.
type Schedule struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Description     string         `json:"description"`
	StartsAt        time.Time      `json:"starts_at"`
	ResponsibleID   string         `json:"responsible_id"`
	ResponsibleName string         `json:"responsible_name,omitempty"`
	Status          ScheduleStatus `json:"status"`
	CreatedAt       time.Time      `json:"created_at"`
}
