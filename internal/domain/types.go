package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventStatus string

const (
	EventPending    EventStatus = "pending"
	EventConfirmed  EventStatus = "confirmed"
	EventInProgress EventStatus = "in_progress"
	EventCompleted  EventStatus = "event_completed"
	EventSettled    EventStatus = "completed"
	EventDisputed   EventStatus = "disputed"
	EventCancelled  EventStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending_payment"
	PaymentPaid     PaymentStatus = "paid"
	PaymentHeld     PaymentStatus = "funds_held"
	PaymentReleased PaymentStatus = "payment_released"
	PaymentRefunded PaymentStatus = "refunded"
)

// StatePair is the combined booking state the lifecycle transitions on.
type StatePair struct {
	Event   EventStatus
	Payment PaymentStatus
}

type Booking struct {
	ID            uuid.UUID
	ApplicationID int64
	ArtistID      int64
	OrganizerID   int64
	EventID       int64
	EventEndsAt   time.Time
	TotalCents    int64
	FeeCents      int64
	NetCents      int64
	EventStatus   EventStatus
	PaymentStatus PaymentStatus
	AutoReleaseAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (b *Booking) State() StatePair {
	return StatePair{Event: b.EventStatus, Payment: b.PaymentStatus}
}

type DisputeStatus string

const (
	DisputeOpen     DisputeStatus = "open"
	DisputeResolved DisputeStatus = "resolved"
)

type DisputeKind string

const (
	DisputeNonDelivery  DisputeKind = "non_delivery"
	DisputeQuality      DisputeKind = "quality"
	DisputeCancellation DisputeKind = "cancellation"
)

type DisputeDecision string

const (
	FavorArtist    DisputeDecision = "favor_artist"
	FavorOrganizer DisputeDecision = "favor_organizer"
	PartialRefund  DisputeDecision = "partial_refund"
	FullRefund     DisputeDecision = "full_refund"
)

type Dispute struct {
	ID            uuid.UUID
	BookingID     uuid.UUID
	ReporterID    int64
	Kind          DisputeKind
	Description   string
	EvidenceRefs  []string
	Status        DisputeStatus
	Resolution    *string
	AutoResolveAt time.Time
	CreatedAt     time.Time
	ResolvedAt    *time.Time
}

type TransactionKind string

const (
	TxCapture TransactionKind = "capture"
	TxRelease TransactionKind = "release"
	TxRefund  TransactionKind = "refund"
)

// PaymentTransaction is one row of the append-only money-movement
// ledger. Entries are never updated or deleted; corrections are new
// entries.
type PaymentTransaction struct {
	ID        uuid.UUID
	BookingID uuid.UUID
	Kind      TransactionKind
	Cents     int64
	FeeCents  int64
	NetCents  int64
	Status    string
	CreatedAt time.Time
}

type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApproved ApplicationStatus = "approved"
	ApplicationRejected ApplicationStatus = "rejected"
)

// EventApplication is the precursor to a booking. Browsing and
// editing applications belongs to another subsystem; this core only
// reads one and flips its status on an organizer decision.
type EventApplication struct {
	ID          int64
	ArtistID    int64
	OrganizerID int64
	EventID     int64
	EventEndsAt time.Time
	AmountCents int64
	Status      ApplicationStatus
	Response    *string
	DecidedAt   *time.Time
}

type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	TaskDone    TaskStatus = "done"
	TaskFailed  TaskStatus = "failed"
)

// BookingTask is an outbox row: an approved application waiting for
// its booking to be created. Keyed by application id so retries are
// idempotent.
type BookingTask struct {
	ApplicationID int64
	ArtistID      int64
	OrganizerID   int64
	EventID       int64
	EventEndsAt   time.Time
	AmountCents   int64
	Status        TaskStatus
	Attempts      int
	LastError     *string
	NextAttemptAt time.Time
	BookingID     *uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ComputeFee returns the platform fee for a total, in cents, given a
// rate in basis points. Computed once at booking creation and
// immutable afterwards.
func ComputeFee(totalCents int64, feeBps int) int64 {
	return totalCents * int64(feeBps) / 10000
}

// CompletionDue reports whether the completion sweep should move the
// booking into escrow: event over, payment captured, not yet advanced.
func CompletionDue(b *Booking, now time.Time) bool {
	return b.EventStatus == EventConfirmed &&
		b.PaymentStatus == PaymentPaid &&
		b.EventEndsAt.Before(now)
}

// ReleaseDue reports whether held funds are past their grace period.
// A disputed booking never matches: opening a dispute already moved
// its event status off event_completed.
func ReleaseDue(b *Booking, now time.Time) bool {
	return b.EventStatus == EventCompleted &&
		b.PaymentStatus == PaymentHeld &&
		b.AutoReleaseAt != nil &&
		!b.AutoReleaseAt.After(now)
}

// HeldStateConsistent checks the escrow invariant: funds_held implies
// the event is either completed-awaiting-release or disputed, and the
// auto-release date exists exactly while the booking sits in the
// releasable window.
func HeldStateConsistent(b *Booking) bool {
	if b.PaymentStatus == PaymentHeld {
		if b.EventStatus != EventCompleted && b.EventStatus != EventDisputed {
			return false
		}
	}
	inWindow := b.EventStatus == EventCompleted && b.PaymentStatus == PaymentHeld
	return inWindow == (b.AutoReleaseAt != nil)
}

// AmountsConsistent checks net + fee = total.
func AmountsConsistent(b *Booking) bool {
	return b.NetCents+b.FeeCents == b.TotalCents
}
