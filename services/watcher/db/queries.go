package db

import (
	"context"
)

const insertMonitoringRequest = `
INSERT INTO monitoring_requests (
    zipcode, max_distance, name, phone_number, email,
    service_title, selector, dates, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

type InsertMonitoringRequestParams struct {
	Zipcode      string
	MaxDistance  int64
	Name         string
	PhoneNumber  string
	Email        string
	ServiceTitle string
	Selector     string
	Dates        string
	CreatedAt    int64
}

func (q *Queries) InsertMonitoringRequest(ctx context.Context, arg InsertMonitoringRequestParams) error {
	_, err := q.db.ExecContext(ctx, insertMonitoringRequest,
		arg.Zipcode,
		arg.MaxDistance,
		arg.Name,
		arg.PhoneNumber,
		arg.Email,
		arg.ServiceTitle,
		arg.Selector,
		arg.Dates,
		arg.CreatedAt,
	)
	return err
}

const listMonitoringRequests = `
SELECT id, zipcode, max_distance, name, phone_number, email,
       service_title, selector, dates, created_at
FROM monitoring_requests
ORDER BY created_at ASC
`

type MonitoringRequest struct {
	ID           int64
	Zipcode      string
	MaxDistance  int64
	Name         string
	PhoneNumber  string
	Email        string
	ServiceTitle string
	Selector     string
	Dates        string
	CreatedAt    int64
}

func (q *Queries) ListMonitoringRequests(ctx context.Context) ([]MonitoringRequest, error) {
	rows, err := q.db.QueryContext(ctx, listMonitoringRequests)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MonitoringRequest
	for rows.Next() {
		var row MonitoringRequest
		err := rows.Scan(
			&row.ID,
			&row.Zipcode,
			&row.MaxDistance,
			&row.Name,
			&row.PhoneNumber,
			&row.Email,
			&row.ServiceTitle,
			&row.Selector,
			&row.Dates,
			&row.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
