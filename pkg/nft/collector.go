package nft

// Binding routes one symbol name to the fields that receive its address
// and size. Either pointer may be nil.
type Binding struct {
	Name string
	Addr *uint64
	Size *uint64
}

// Collector captures the samples whose names it has bindings for. A name
// seen more than once keeps the last value. Names never seen leave their
// fields untouched.
type Collector struct {
	bindings map[string]Binding
}

// NewCollector returns a collector for the given bindings.
func NewCollector(bindings ...Binding) *Collector {
	c := &Collector{bindings: make(map[string]Binding, len(bindings))}
	for _, b := range bindings {
		c.bindings[b.Name] = b
	}
	return c
}

// Collect has the SymbolFunc signature.
func (c *Collector) Collect(name string, addr, size uint64) {
	b, ok := c.bindings[name]
	if !ok {
		return
	}
	if b.Addr != nil {
		*b.Addr = addr
	}
	if b.Size != nil {
		*b.Size = size
	}
}

func simpleCollector(md *TestMetadata) *Collector {
	return NewCollector(
		Binding{Name: "function1", Addr: &md.simpleFunction1Addr},
		Binding{Name: "function2", Addr: &md.simpleFunction2Addr, Size: &md.simpleFunction2Length},
	)
}

func workerThreadsCollector(md *TestMetadata) *Collector {
	return NewCollector(
		Binding{Name: "breakpoint_thr_func", Addr: &md.threadBreakAddr},
		Binding{Name: "start_notification", Addr: &md.startNotificationAddr},
		Binding{Name: "term_notification", Addr: &md.termNotificationAddr},
	)
}
