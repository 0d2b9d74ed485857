package hostgroup

import (
	"context"
	"fmt"
	"sync"

	multierror "github.com/hashicorp/go-multierror"

	"github.com/varadakari/ceph-deploy/cephdeploy/host"
)

// HostError ties a failure to the host it happened on.
type HostError struct {
	Hostname string
	Err      error
}

func (e *HostError) Error() string {
	return fmt.Sprintf("error while processing host %s: %v", e.Hostname, e.Err)
}

func (e *HostError) Unwrap() error { return e.Err }

// HostGroup is an ordered set of hosts keyed by hostname.
type HostGroup struct {
	sync.RWMutex
	Hosts map[string]*host.Host
	order []string
}

// NewHostGroup creates a new HostGroup with the given hosts.
func NewHostGroup(hosts ...*host.Host) *HostGroup {
	hg := &HostGroup{Hosts: make(map[string]*host.Host)}
	for _, h := range hosts {
		hg.AddHost(h)
	}
	return hg
}

// AddHost adds a host to the HostGroup. Re-adding a hostname replaces it in place.
func (hg *HostGroup) AddHost(h *host.Host) {
	hg.Lock()
	defer hg.Unlock()
	if _, exists := hg.Hosts[h.Hostname]; !exists {
		hg.order = append(hg.order, h.Hostname)
	}
	hg.Hosts[h.Hostname] = h
}

// HasHost checks if a host with the given hostname exists in the HostGroup.
func (hg *HostGroup) HasHost(hostname string) bool {
	hg.RLock()
	defer hg.RUnlock()
	_, exists := hg.Hosts[hostname]
	return exists
}

// Hostnames returns hostnames in insertion order.
func (hg *HostGroup) Hostnames() []string {
	hg.RLock()
	defer hg.RUnlock()
	return append([]string(nil), hg.order...)
}

// ForEach connects to each host in turn, runs action and closes the host.
// Hosts are never provisioned concurrently. A failing host does not stop the
// rest; all failures are returned together.
func (hg *HostGroup) ForEach(ctx context.Context, action func(ctx context.Context, h *host.Host) error) error {
	var result *multierror.Error

	for _, hostname := range hg.Hostnames() {
		if err := ctx.Err(); err != nil {
			result = multierror.Append(result, err)
			break
		}

		hg.RLock()
		h, ok := hg.Hosts[hostname]
		hg.RUnlock()
		if !ok {
			continue
		}

		if err := processHost(ctx, h, action); err != nil {
			result = multierror.Append(result, &HostError{Hostname: hostname, Err: err})
		}
	}

	return result.ErrorOrNil()
}

func processHost(ctx context.Context, h *host.Host, action func(ctx context.Context, h *host.Host) error) error {
	defer func() {
		if err := h.Close(); err != nil {
			h.Log.WithError(err).Debug("Error closing connection")
		}
	}()

	if err := h.Connect(ctx); err != nil {
		return err
	}
	return action(ctx, h)
}
