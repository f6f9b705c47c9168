package app

import "time"

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

// AvailabilityRule is a weekly recurring window, in minutes from midnight UTC.
type AvailabilityRule struct {
	ID           int    `json:"id"`
	UserID       string `json:"user_id"`
	DayOfWeek    int    `json:"day_of_week"`
	StartMinutes int    `json:"time_start_in_minutes"`
	EndMinutes   int    `json:"time_end_in_minutes"`
}

// Hours returns the rule window truncated to whole hours.
func (r AvailabilityRule) Hours() (startHour, endHour int) {
	return r.StartMinutes / 60, r.EndMinutes / 60
}

// HourAligned reports whether both boundaries fall on the hour.
func (r AvailabilityRule) HourAligned() bool {
	return r.StartMinutes%60 == 0 && r.EndMinutes%60 == 0
}

type Booking struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Observations string    `json:"observations"`
	Date         time.Time `json:"date"`
	CreatedAt    time.Time `json:"created_at"`
}

// Availability is the resolved set of hour slots for one day.
type Availability struct {
	PossibleTimes  []int `json:"possibleTimes"`
	AvailableTimes []int `json:"availableTimes"`
}

func emptyAvailability() Availability {
	return Availability{PossibleTimes: []int{}, AvailableTimes: []int{}}
}

// CalendarEvent is what gets pushed to the owner's external calendar.
type CalendarEvent struct {
	Title         string
	Description   string
	Start         time.Time
	End           time.Time
	AttendeeEmail string
}
