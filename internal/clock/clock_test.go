package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)

func TestVirtualClock_Advance(t *testing.T) {
	vc := NewVirtualClock(epoch)
	vc.Advance(90 * time.Second)

	assert.Equal(t, epoch.Add(90*time.Second), vc.Now())
}

func TestVirtualClock_AdvanceNegativePanics(t *testing.T) {
	vc := NewVirtualClock(epoch)
	assert.Panics(t, func() { vc.Advance(-time.Second) })
}

func TestVirtualClock_After_FiresOnlyAtDeadline(t *testing.T) {
	vc := NewVirtualClock(epoch)
	ch := vc.After(5 * time.Second)
	assert.Equal(t, 1, vc.Pending())

	vc.Advance(4 * time.Second)
	select {
	case <-ch:
		t.Fatal("After() fired before its deadline")
	default:
	}

	vc.Advance(time.Second)
	select {
	case got := <-ch:
		assert.Equal(t, epoch.Add(5*time.Second), got)
	default:
		t.Fatal("After() did not fire at its deadline")
	}
	assert.Equal(t, 0, vc.Pending())
}

func TestVirtualClock_After_ZeroFiresImmediately(t *testing.T) {
	vc := NewVirtualClock(epoch)

	select {
	case <-vc.After(0):
	default:
		t.Fatal("After(0) should fire immediately")
	}
	assert.Equal(t, 0, vc.Pending())
}

func TestRealClock_Now(t *testing.T) {
	c := NewRealClock()
	before := time.Now()
	got := c.Now()

	assert.False(t, got.Before(before))
}
