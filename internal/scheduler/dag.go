package scheduler

import (
	"fmt"
	"strings"

	"github.com/gammazero/toposort"
)

// DAG is the registry of tasks and their prerequisite edges.
// Registration order is preserved: chain resolution walks prerequisites in
// declared order, so the same graph always yields the same chain.
type DAG struct {
	tasks map[string]*Task
	order []string // registration order, for stable listings
}

// NewDAG creates an empty task registry.
func NewDAG() *DAG {
	return &DAG{tasks: make(map[string]*Task)}
}

// Add registers a task. Returns an error if the name is already taken.
func (d *DAG) Add(task *Task) error {
	if _, exists := d.tasks[task.Name]; exists {
		return fmt.Errorf("task %q already registered", task.Name)
	}
	d.tasks[task.Name] = task
	d.order = append(d.order, task.Name)
	return nil
}

// Get returns the task with the given name.
func (d *DAG) Get(name string) (*Task, bool) {
	t, ok := d.tasks[name]
	return t, ok
}

// Names returns all registered task names in registration order.
func (d *DAG) Names() []string {
	return append([]string(nil), d.order...)
}

// Validate checks that every prerequisite exists and that the graph is
// acyclic, returning a topological order of all task names.
func (d *DAG) Validate() ([]string, error) {
	for name, task := range d.tasks {
		for _, req := range task.Requires {
			if _, exists := d.tasks[req]; !exists {
				return nil, fmt.Errorf("task %q requires %w %q", name, ErrUnknownTask, req)
			}
		}
	}

	var edges []toposort.Edge
	for name, task := range d.tasks {
		if len(task.Requires) == 0 {
			edges = append(edges, toposort.Edge{nil, name})
			continue
		}
		for _, req := range task.Requires {
			edges = append(edges, toposort.Edge{req, name})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCycle, err)
	}

	order := make([]string, 0, len(sorted))
	for _, n := range sorted {
		if n != nil {
			order = append(order, n.(string))
		}
	}
	if len(order) != len(d.tasks) {
		missing := []string{}
		seen := make(map[string]bool, len(order))
		for _, n := range order {
			seen[n] = true
		}
		for name := range d.tasks {
			if !seen[name] {
				missing = append(missing, name)
			}
		}
		return nil, fmt.Errorf("topological sort lost %d tasks: %s", len(missing), strings.Join(missing, ", "))
	}
	return order, nil
}

// ResolveChain returns the ordered list of tasks to execute for target:
// every transitive prerequisite in declared order, each exactly once, with
// the target itself last. Unknown names and cycles are errors.
func (d *DAG) ResolveChain(target string) ([]*Task, error) {
	if _, ok := d.tasks[target]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTask, target)
	}

	var chain []*Task
	visited := make(map[string]bool)
	inPath := make(map[string]bool)

	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		if visited[name] {
			return nil
		}
		if inPath[name] {
			return fmt.Errorf("%w: %s -> %s", ErrCycle, strings.Join(path, " -> "), name)
		}
		task, ok := d.tasks[name]
		if !ok {
			return fmt.Errorf("%w: %q (required by %s)", ErrUnknownTask, name, strings.Join(path, " -> "))
		}
		inPath[name] = true
		for _, req := range task.Requires {
			if err := visit(req, append(path, name)); err != nil {
				return err
			}
		}
		inPath[name] = false
		visited[name] = true
		chain = append(chain, task)
		return nil
	}

	if err := visit(target, nil); err != nil {
		return nil, err
	}
	return chain, nil
}
