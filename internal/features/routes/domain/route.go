package domain

// Route is one assigned delivery route for a driver on a given day.
type Route struct {
	// ID is the ERP route identifier.
	ID string `json:"id"`
	// Name is the human-readable route label (e.g., area name).
	Name string `json:"name"`
	// Date is the route date in YYYY-MM-DD.
	Date string `json:"date"`
	// Stops are the deliveries on this route in visiting order.
	Stops []Stop `json:"stops"`
}

// Stop is a single delivery on a route.
type Stop struct {
	// DeliveryID identifies the delivery at this stop.
	DeliveryID string `json:"delivery_id"`
	// Sequence is the planned visiting order, starting at 1.
	Sequence int `json:"sequence"`
	// CustomerName is the recipient's display name.
	CustomerName string `json:"customer_name"`
	// Address is the delivery address.
	Address string `json:"address"`
	// Latitude and Longitude locate the stop.
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	// Cylinders is the number of gas cylinders to deliver.
	Cylinders int `json:"cylinders"`
	// Status is the delivery's current status overlaid from the event
	// store; the ERP copy may lag behind.
	Status string `json:"status"`
}

// Stats summarizes a driver's progress across all assigned stops.
type Stats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Remaining int `json:"remaining"`
	// CompletionRate is Completed divided by Total, 0 when Total is 0.
	CompletionRate float64 `json:"completion_rate"`
}

// Snapshot bundles a driver's routes with their derived stats.
type Snapshot struct {
	Routes []Route `json:"routes"`
	Stats  Stats   `json:"stats"`
}
