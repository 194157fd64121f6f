package redis

import (
	"fmt"

	"github.com/google/uuid"
)

const ns = "ams:v1"

func KeyBookingSummary(id uuid.UUID) string {
	return fmt.Sprintf("%s:booking:%s:summary", ns, id)
}

func KeyBookingLedger(id uuid.UUID) string {
	return fmt.Sprintf("%s:booking:%s:ledger", ns, id)
}

func KeyIdemApprove(applicationID int64, idemKey string) string {
	return fmt.Sprintf("%s:idem:approve:%d:%s", ns, applicationID, idemKey)
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

func ChannelBookingsChanged() string {
	return ns + ":bookings:changed"
}
