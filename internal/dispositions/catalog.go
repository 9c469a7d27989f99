package dispositions

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

var ErrNotFound = errors.New("dispositions: unknown or inactive code")

// Catalog is the lookup contract for disposition configuration.
type Catalog interface {
	Get(ctx context.Context, code string) (Disposition, error)
	List(ctx context.Context) ([]Disposition, error)
}

// MemoryCatalog is an in-memory catalog for tests and early development.
type MemoryCatalog struct {
	mu    sync.Mutex
	codes map[string]Disposition
}

func NewMemoryCatalog(ds ...Disposition) *MemoryCatalog {
	c := &MemoryCatalog{codes: map[string]Disposition{}}
	for _, d := range ds {
		c.codes[strings.ToUpper(d.Code)] = d
	}
	return c
}

func (c *MemoryCatalog) Put(d Disposition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codes[strings.ToUpper(d.Code)] = d
}

func (c *MemoryCatalog) Get(ctx context.Context, code string) (Disposition, error) {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.codes[strings.ToUpper(code)]
	if !ok || !d.IsActive {
		return Disposition{}, ErrNotFound
	}
	return d, nil
}

func (c *MemoryCatalog) List(ctx context.Context) ([]Disposition, error) {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Disposition, 0, len(c.codes))
	for _, d := range c.codes {
		if d.IsActive {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// DefaultCatalog seeds the codes a fresh workspace starts with.
func DefaultCatalog() *MemoryCatalog {
	return NewMemoryCatalog(
		Disposition{Code: "NO_ANSWER", Name: "No Answer", Category: CategoryNoContact, IsActive: true},
		Disposition{Code: "BUSY", Name: "Busy", Category: CategoryNoContact, IsActive: true},
		Disposition{Code: "LEFT_VOICEMAIL", Name: "Left Voicemail", Category: CategoryNoContact, IsActive: true},
		Disposition{Code: "CALLBACK_REQUESTED", Name: "Callback Requested", Category: CategoryCallback, ScheduleCallback: true, IsActive: true},
		Disposition{Code: "APPOINTMENT_SET", Name: "Appointment Set", Category: CategoryQualified, RemoveFromList: true, UpdateLeadStatus: "appointment_set", IsActive: true},
		Disposition{Code: "NOT_INTERESTED", Name: "Not Interested", Category: CategoryNegative, RemoveFromList: true, UpdateLeadStatus: "not_interested", IsActive: true},
		Disposition{Code: "WRONG_NUMBER", Name: "Wrong Number", Category: CategoryDisqualified, RemoveFromList: true, IsActive: true},
		Disposition{Code: "DO_NOT_CALL", Name: "Do Not Call", Category: CategoryDisqualified, RemoveFromList: true, AddToDNC: true, IsActive: true},
	)
}
