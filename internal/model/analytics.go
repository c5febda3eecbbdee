package model

// AdminAnalytics aggregates fleet-wide delivery activity for the operator
// dashboard. Counts cover active deliveries and the archive together.
type AdminAnalytics struct {
	TotalUsers          int     `json:"total_users"`
	TotalDeliveries     int     `json:"total_deliveries"`
	ActiveDeliveries    int     `json:"active_deliveries"`
	CompletedDeliveries int     `json:"completed_deliveries"`
	CancelledDeliveries int     `json:"cancelled_deliveries"`
	SuccessRate         float64 `json:"success_rate"`
	DeliveriesToday     int     `json:"deliveries_today"`
	DeliveriesThisWeek  int     `json:"deliveries_this_week"`
	DeliveriesThisMonth int     `json:"deliveries_this_month"`
	CompartmentsInUse   int     `json:"compartments_in_use"`
	TopDestination      int     `json:"top_destination"`
	TopDestinationCount int     `json:"top_destination_count"`
}

// UserAnalytics summarizes one account's delivery activity.
type UserAnalytics struct {
	TotalSent        int     `json:"total_sent"`
	TotalReceived    int     `json:"total_received"`
	ThisWeekSent     int     `json:"this_week_sent"`
	ThisWeekReceived int     `json:"this_week_received"`
	Completed        int     `json:"completed"`
	Cancelled        int     `json:"cancelled"`
	SuccessRate      float64 `json:"success_rate"`
	TopDestination   int     `json:"top_destination"`
}
