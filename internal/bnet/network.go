package bnet

import "fmt"

// Phase tracks a network through its assembly lifecycle. A network only
// serves inference once it reaches PhaseReady, after which it is
// immutable.
type Phase int

const (
	PhaseUnassembled Phase = iota
	PhaseAssembled
	PhaseValidated
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseUnassembled:
		return "unassembled"
	case PhaseAssembled:
		return "assembled"
	case PhaseValidated:
		return "validated"
	case PhaseReady:
		return "ready"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Variable is one node of an assembled network: its states, its parents
// in CPT column order, and its table.
type Variable struct {
	Name    string
	States  []string
	Parents []string
	CPT     *CPT
}

// Network is a per-typology DAG of variables. Build it by adding
// variables, then walk the lifecycle: Assemble, Validate, Freeze.
type Network struct {
	name    string
	phase   Phase
	order   []string // insertion order, used as a stable iteration order
	vars    map[string]*Variable
	outcome string
	topo    []string // cached by Validate
}

// NewNetwork creates an empty network in PhaseUnassembled.
func NewNetwork(name string) *Network {
	return &Network{name: name, vars: make(map[string]*Variable)}
}

func (n *Network) Name() string { return n.name }

// Phase returns the current lifecycle phase.
func (n *Network) Phase() Phase { return n.phase }

// Outcome returns the designated sink variable's name.
func (n *Network) Outcome() string { return n.outcome }

// Variable looks up a variable by name.
func (n *Network) Variable(name string) (*Variable, bool) {
	v, ok := n.vars[name]
	return v, ok
}

// Names returns all variable names in insertion order.
func (n *Network) Names() []string {
	return append([]string(nil), n.order...)
}

// TopologicalOrder returns a parents-before-children ordering, available
// once the network has been validated.
func (n *Network) TopologicalOrder() []string {
	return append([]string(nil), n.topo...)
}

// AddVariable registers a variable. Only legal before Assemble.
func (n *Network) AddVariable(v *Variable) error {
	if n.phase != PhaseUnassembled {
		return &AssemblyValidationError{Network: n.name, Detail: "cannot add variables after assembly"}
	}
	if v.Name == "" {
		return &AssemblyValidationError{Network: n.name, Detail: "variable name is required"}
	}
	if _, dup := n.vars[v.Name]; dup {
		return &AssemblyValidationError{Network: n.name, Detail: fmt.Sprintf("duplicate variable %q", v.Name)}
	}
	n.vars[v.Name] = v
	n.order = append(n.order, v.Name)
	return nil
}

// Assemble designates the outcome variable and closes the node set.
func (n *Network) Assemble(outcome string) error {
	if n.phase != PhaseUnassembled {
		return &AssemblyValidationError{Network: n.name, Detail: "assemble called twice"}
	}
	if _, ok := n.vars[outcome]; !ok {
		return &AssemblyValidationError{Network: n.name, Detail: fmt.Sprintf("outcome variable %q not found", outcome)}
	}
	n.outcome = outcome
	n.phase = PhaseAssembled
	return nil
}

// Validate checks the structural invariants: every parent reference
// resolves, the graph is acyclic, the outcome is the single sink, every
// variable has a well-formed CPT, and every non-outcome variable has at
// least one consumer.
func (n *Network) Validate() error {
	if n.phase != PhaseAssembled {
		return &AssemblyValidationError{Network: n.name, Detail: fmt.Sprintf("validate called in phase %s", n.phase)}
	}

	consumers := make(map[string]int, len(n.vars))
	for _, name := range n.order {
		v := n.vars[name]
		if v.CPT == nil {
			return &AssemblyValidationError{Network: n.name, Detail: fmt.Sprintf("variable %q has no CPT", name)}
		}
		if err := v.CPT.Validate(); err != nil {
			return err
		}
		if len(v.CPT.Parents) != len(v.Parents) {
			return &AssemblyValidationError{Network: n.name, Detail: fmt.Sprintf("variable %q CPT parent list mismatch", name)}
		}
		for _, p := range v.Parents {
			if _, ok := n.vars[p]; !ok {
				return &AssemblyValidationError{Network: n.name, Detail: fmt.Sprintf("variable %q references unknown parent %q", name, p)}
			}
			consumers[p]++
		}
	}

	for _, name := range n.order {
		if name == n.outcome {
			if consumers[name] != 0 {
				return &AssemblyValidationError{Network: n.name, Detail: fmt.Sprintf("outcome %q must be a sink but has consumers", name)}
			}
			continue
		}
		if consumers[name] == 0 {
			return &AssemblyValidationError{Network: n.name, Detail: fmt.Sprintf("variable %q has no in-network consumers", name)}
		}
	}

	topo, err := n.topologicalSort()
	if err != nil {
		return err
	}
	n.topo = topo
	n.phase = PhaseValidated
	return nil
}

// Freeze moves a validated network into PhaseReady. From here on the
// network is immutable and safe to share across goroutines without
// locks.
func (n *Network) Freeze() error {
	if n.phase != PhaseValidated {
		return &AssemblyValidationError{Network: n.name, Detail: fmt.Sprintf("freeze called in phase %s", n.phase)}
	}
	n.phase = PhaseReady
	return nil
}

// topologicalSort runs Kahn's algorithm, surfacing cycles as assembly
// errors.
func (n *Network) topologicalSort() ([]string, error) {
	indegree := make(map[string]int, len(n.vars))
	children := make(map[string][]string, len(n.vars))
	for _, name := range n.order {
		indegree[name] = len(n.vars[name].Parents)
		for _, p := range n.vars[name].Parents {
			children[p] = append(children[p], name)
		}
	}

	var queue, topo []string
	for _, name := range n.order {
		if indegree[name] == 0 {
			queue = append(queue, name)
		}
	}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		topo = append(topo, name)
		for _, child := range children[name] {
			indegree[child]--
			if indegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}
	if len(topo) != len(n.vars) {
		return nil, &AssemblyValidationError{Network: n.name, Detail: "graph contains a cycle"}
	}
	return topo, nil
}
