package payroll

import (
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSlipReferenceFormat(t *testing.T) {
	period := Period{Year: 2024, Month: time.March}
	ref := SlipReference(period, 42, "slip-a")

	assert.Regexp(t, regexp.MustCompile(`^SLIP-202403-42-[0-9a-f]{8}$`), ref)
	assert.Equal(t, ref, SlipReference(period, 42, "slip-a"))
	assert.NotEqual(t, ref, SlipReference(period, 42, "slip-b"))
}

func TestKeyedMutexSerializesPerKey(t *testing.T) {
	locks := newKeyedMutex()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("7:202403")
			mu.Lock()
			active++
			maxSeen = max(maxSeen, active)
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Empty(t, locks.locks, "idle keys are released")
}

func TestReasonFor(t *testing.T) {
	boom := errors.New("boom")
	cases := []struct {
		err  error
		want string
	}{
		{&DuplicateSlipError{EmployeeID: 1}, ReasonDuplicateSlip},
		{&MisconfiguredTaxTableError{Matches: 2}, ReasonMisconfiguredTaxTable},
		{&PersistenceError{Op: "create slip", Err: boom}, ReasonPersistenceError},
		{&InvalidRecordError{Kind: "benefit"}, ReasonInvalidRecord},
		{fmt.Errorf("%w: 9", ErrEmployeeNotFound), ReasonEmployeeNotFound},
		{boom, ReasonGenerationFailed},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ReasonFor(tc.err), tc.err.Error())
	}
}
