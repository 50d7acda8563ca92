package core

import "order-router/internal/routing/domain/models"

const (
	// in seconds for db response
	WaitTime = 20

	AutoAssignLockKey int64 = 0x6f726472

	ChangedByAdmin      = "admin"
	ChangedByAutoAssign = "auto-assign"
	ChangedByIntake     = "intake"

	ChangedByStorePrefix = "store:"

	DefaultListLimit = 100
	MaxListLimit     = 500

	MinCustomerNameLen     = 1
	MaxCustomerNameLen     = 100
	MinPhoneLen            = 5
	MaxPhoneLen            = 20
	AllowedPhoneCharacters = "+- ()"
	MaxAddressLen          = 300
	MaxNotesLen            = 1000
	MaxMainStoreNameLen    = 100

	MinItems        = 1
	MaxItems        = 50
	MinItemNameLen  = 1
	MaxItemNameLen  = 100
	MinItemQuantity = 1
	MaxItemQuantity = 100
	MinItemPrice    = 0.0
	MaxItemPrice    = 100000000.0

	MinStoreNameLen     = 1
	MaxStoreNameLen     = 100
	MinStorePasswordLen = 6
	MaxStorePasswordLen = 128
)

var (
	AllowedStatuses = map[string]bool{
		models.StatusPending:   true,
		models.StatusAssigned:  true,
		models.StatusDelivered: true,
		models.StatusReturned:  true,
	}

	// StatusTransitions lists the transitions a store may apply. Assignment
	// itself goes through the assign operations.
	StatusTransitions = map[string][]string{
		models.StatusAssigned:  {models.StatusDelivered, models.StatusReturned},
		models.StatusDelivered: {models.StatusReturned},
	}
)

// CanTransition reports whether from -> to is an allowed status update.
func CanTransition(from, to string) bool {
	for _, s := range StatusTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
