package contracts

// Exchanges
const (
	ExchangeFleetTopic     = "fleet_topic"
	ExchangePositionFanout = "position_fanout"
)

// Queues
const (
	QueueSessionStatus        = "session_status"
	QueueAccountEvents        = "account_events"
	QueuePositionUpdatesBoard = "position_updates_board"
)

// Routing patterns
const (
	RouteSessionStatusPrefix = "session.status." // {user_id}
	RouteAccountStatusPrefix = "account.status." // {user_id}
)
