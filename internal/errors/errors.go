// Package errors defines the error taxonomy shared by motiondeck packages and
// the fault log that records card-local demo failures.
package errors

import (
	"fmt"
	"sync"
	"time"
)

// DemoFault records a demo that failed at its card boundary.
type DemoFault struct {
	CardID      string    `json:"cardId"`
	AnimationID string    `json:"animationId"`
	MountKey    int       `json:"mountKey"`
	Phase       string    `json:"phase"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
}

// Error implements the error interface
func (f *DemoFault) Error() string {
	return fmt.Sprintf("%s#%d: %s: %s", f.AnimationID, f.MountKey, f.Phase, f.Message)
}

// FaultLog collects demo faults up to a fixed capacity, dropping the oldest.
type FaultLog struct {
	faults   []DemoFault
	capacity int
	mutex    sync.RWMutex
}

// NewFaultLog creates a fault log keeping at most capacity entries.
func NewFaultLog(capacity int) *FaultLog {
	if capacity <= 0 {
		capacity = 100
	}
	return &FaultLog{
		faults:   make([]DemoFault, 0, capacity),
		capacity: capacity,
	}
}

// Add records a fault
func (fl *FaultLog) Add(fault DemoFault) {
	fl.mutex.Lock()
	defer fl.mutex.Unlock()
	if fault.Timestamp.IsZero() {
		fault.Timestamp = time.Now()
	}
	if len(fl.faults) == fl.capacity {
		copy(fl.faults, fl.faults[1:])
		fl.faults = fl.faults[:len(fl.faults)-1]
	}
	fl.faults = append(fl.faults, fault)
}

// Faults returns a copy of the recorded faults, oldest first.
func (fl *FaultLog) Faults() []DemoFault {
	fl.mutex.RLock()
	defer fl.mutex.RUnlock()
	result := make([]DemoFault, len(fl.faults))
	copy(result, fl.faults)
	return result
}

// ByAnimation returns faults for a specific animation
func (fl *FaultLog) ByAnimation(animationID string) []DemoFault {
	fl.mutex.RLock()
	defer fl.mutex.RUnlock()
	var out []DemoFault
	for _, f := range fl.faults {
		if f.AnimationID == animationID {
			out = append(out, f)
		}
	}
	return out
}

// Len returns the number of recorded faults.
func (fl *FaultLog) Len() int {
	fl.mutex.RLock()
	defer fl.mutex.RUnlock()
	return len(fl.faults)
}

// Clear clears all faults
func (fl *FaultLog) Clear() {
	fl.mutex.Lock()
	defer fl.mutex.Unlock()
	fl.faults = fl.faults[:0]
}
