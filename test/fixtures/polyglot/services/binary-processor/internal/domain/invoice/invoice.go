package invoice

import "time"

type Invoice struct {
	ID        string
	Total     int64
	CreatedAt time.Time
}

func (i Invoice) Overdue(now time.Time) bool {
	return now.Sub(i.CreatedAt) > 30*24*time.Hour
}
