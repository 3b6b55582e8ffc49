package contracts

import "time"

// PositionUpdateMessage is broadcast by the tracker service on every
// accepted position write.
// Exchange: ExchangePositionFanout (fanout, no routing key).
type PositionUpdateMessage struct {
	UserID     string    `json:"user_id"`
	CompanyID  string    `json:"company_id"`
	RouteID    string    `json:"route_id"`
	Location   GeoPoint  `json:"location"`
	RecordedAt time.Time `json:"recorded_at"`
	Envelope
}
