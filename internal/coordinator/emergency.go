package coordinator

import (
	"log"
	"sync/atomic"

	"github.com/meshguard/backend-go/internal/domain"
)

// EmergencyStop manages the global kill switch. While triggered, no new
// faults are accepted and the monitor loop stops building plans.
type EmergencyStop struct {
	triggered atomic.Bool
}

// NewEmergencyStop creates a cleared emergency stop
func NewEmergencyStop() *EmergencyStop {
	return &EmergencyStop{}
}

// Trigger activates the emergency stop
func (es *EmergencyStop) Trigger() {
	log.Println("EMERGENCY STOP TRIGGERED")
	es.triggered.Store(true)
}

// Reset clears the emergency stop, allowing new recovery work
func (es *EmergencyStop) Reset() {
	es.triggered.Store(false)
	log.Println("Emergency stop reset")
}

// IsTriggered returns whether the emergency stop is active
func (es *EmergencyStop) IsTriggered() bool {
	return es.triggered.Load()
}

// Check returns ErrEmergencyStop if triggered
func (es *EmergencyStop) Check() error {
	if es.triggered.Load() {
		return domain.ErrEmergencyStop
	}
	return nil
}
