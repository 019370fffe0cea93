package ir

import (
	"github.com/pkg/errors"
)

// A Package owns the channels and procs of one proc network. The structure
// is fixed once construction finishes; interpreters never modify it.
type Package struct {
	name string

	channels       []*Channel
	channelsByName map[string]*Channel
	nextChannelID  int64

	procs       []*Proc
	procsByName map[string]*Proc
}

// NewPackage creates an empty package.
func NewPackage(name string) *Package {
	return &Package{
		name:           name,
		channelsByName: make(map[string]*Channel),
		procsByName:    make(map[string]*Proc),
	}
}

// Name returns the package name.
func (p *Package) Name() string {
	return p.name
}

// CreateChannel declares a channel with the given direction and payload
// fields. Channel names must be unique within the package.
func (p *Package) CreateChannel(
	name string,
	kind ChannelKind,
	fields ...ChannelField,
) (*Channel, error) {
	if name == "" {
		return nil, errors.New("channel name must not be empty")
	}

	if _, exists := p.channelsByName[name]; exists {
		return nil, errors.Errorf("channel %q already declared", name)
	}

	if len(fields) == 0 {
		return nil, errors.Errorf("channel %q must have at least one field",
			name)
	}

	ch := &Channel{
		name:   name,
		id:     p.nextChannelID,
		kind:   kind,
		fields: append([]ChannelField(nil), fields...),
	}
	p.nextChannelID++

	p.channels = append(p.channels, ch)
	p.channelsByName[name] = ch

	return ch, nil
}

// Channels returns the channels in declaration order.
func (p *Package) Channels() []*Channel {
	chs := make([]*Channel, len(p.channels))
	copy(chs, p.channels)
	return chs
}

// ChannelByName looks a channel up by name.
func (p *Package) ChannelByName(name string) (*Channel, bool) {
	ch, ok := p.channelsByName[name]
	return ch, ok
}

// Procs returns the procs in the order they were built.
func (p *Package) Procs() []*Proc {
	procs := make([]*Proc, len(p.procs))
	copy(procs, p.procs)
	return procs
}

// ProcByName looks a proc up by name.
func (p *Package) ProcByName(name string) (*Proc, bool) {
	proc, ok := p.procsByName[name]
	return proc, ok
}

func (p *Package) addProc(proc *Proc) error {
	if _, exists := p.procsByName[proc.name]; exists {
		return errors.Errorf("proc %q already declared", proc.name)
	}

	p.procs = append(p.procs, proc)
	p.procsByName[proc.name] = proc

	return nil
}
