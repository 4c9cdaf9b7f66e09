package entity

// DeliveryState is the delivery state of one recipient within a campaign.
type DeliveryState string

const (
	DeliveryStateNone       DeliveryState = "none"        // recipient can be processed
	DeliveryStateInProgress DeliveryState = "in_progress" // another run is processing it
	DeliveryStateSent       DeliveryState = "sent"        // certificate already delivered
)

func (s DeliveryState) String() string {
	return string(s)
}
