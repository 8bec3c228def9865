package session

import (
	"strconv"
	"time"
)

const dateLayout = "2006-01-02"

// Record is the metadata kept for one customer/employee pairing. No
// conversation content is stored.
type Record struct {
	CustomerID   string    `json:"customer_id"`
	EmployeeID   string    `json:"employee_id"`
	CustomerLang string    `json:"customer_lang"`
	EmployeeLang string    `json:"employee_lang"`
	StartedAt    time.Time `json:"started_at"`
	EndedAt      time.Time `json:"ended_at,omitzero"`
}

func (r *Record) RedisKey() string {
	return RecordRedisKey(r.CustomerID, r.EmployeeID)
}

func RecordRedisKey(customerID, employeeID string) string {
	return "pairing:" + customerID + ":" + employeeID
}

type DailyStats struct {
	Date            string `json:"date"`
	Pairings        int64  `json:"pairings"`
	Completed       int64  `json:"completed"`
	AvgDurationSecs int64  `json:"avg_duration_secs"`
}

func StatsRedisKey(date string) string {
	return "pairings:daily:" + date
}

func formatUnix(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}

func parseUnix(s string) time.Time {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v == 0 {
		return time.Time{}
	}
	return time.Unix(v, 0).UTC()
}
