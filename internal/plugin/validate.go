package plugin

import (
	"fmt"
	"regexp"
)

// namePattern enforces the lowercase/hyphen plugin name form.
var namePattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Validate structurally checks a descriptor before admission. It is pure:
// no registry state is consulted and nothing is mutated. A descriptor that
// fails here is never admitted.
func Validate(d *Descriptor) error {
	if d == nil {
		return fmt.Errorf("%w: descriptor is nil", ErrValidation)
	}
	if d.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if !namePattern.MatchString(d.Name) {
		return fmt.Errorf("%w: name %q must be lowercase alphanumeric with hyphens", ErrValidation, d.Name)
	}
	if d.Version == "" {
		return fmt.Errorf("%w: version is required", ErrValidation)
	}
	if _, err := ParseVersion(d.Version); err != nil {
		return err
	}
	if d.Exec == nil {
		return fmt.Errorf("%w: exec body is required", ErrValidation)
	}
	if !d.Category.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, d.Category)
	}

	if len(d.Capabilities) == 0 {
		return fmt.Errorf("%w: at least one capability is required", ErrValidation)
	}
	profile, err := ProfileFor(d.Category)
	if err != nil {
		return err
	}
	for cap := range d.Capabilities {
		if !profile.AllowsCapability(cap) {
			return fmt.Errorf("%w: capability %q is not valid for category %q", ErrValidation, cap, d.Category)
		}
	}

	for i, dep := range d.Dependencies {
		if dep.Name == "" {
			return fmt.Errorf("%w: dependency %d has no name", ErrValidation, i)
		}
		if dep.Requirement == "" {
			return fmt.Errorf("%w: dependency %q has no version requirement", ErrValidation, dep.Name)
		}
		if _, err := ParseVersion(dep.Requirement); err != nil {
			return fmt.Errorf("%w: dependency %q: requirement %q is not a version triple", ErrValidation, dep.Name, dep.Requirement)
		}
		if dep.Name == d.Name {
			return fmt.Errorf("%w: plugin %q depends on itself", ErrValidation, d.Name)
		}
	}

	return validateHooks(d)
}

// validateHooks checks each hook record and the resolvability of
// same-event dependency names. Cycle detection is the resolver's job.
func validateHooks(d *Descriptor) error {
	names := make(map[Event]map[string]bool)
	for i, h := range d.Hooks {
		if !h.Event.Valid() {
			return fmt.Errorf("%w: hook %d has unknown event %q", ErrValidation, i, h.Event)
		}
		if h.Handler == nil {
			return fmt.Errorf("%w: hook %d (%s) has no handler", ErrValidation, i, h.Event)
		}
		if h.Timeout < 0 {
			return fmt.Errorf("%w: hook %d (%s) has negative timeout", ErrValidation, i, h.Event)
		}
		if h.Priority < 0 {
			return fmt.Errorf("%w: hook %d (%s) has negative priority", ErrValidation, i, h.Event)
		}
		if h.Name != "" {
			if names[h.Event] == nil {
				names[h.Event] = make(map[string]bool)
			}
			if names[h.Event][h.Name] {
				return fmt.Errorf("%w: duplicate hook name %q on event %s", ErrValidation, h.Name, h.Event)
			}
			names[h.Event][h.Name] = true
		}
	}

	for i, h := range d.Hooks {
		for _, dep := range h.DependsOn {
			if dep == h.Name && dep != "" {
				return fmt.Errorf("%w: hook %q depends on itself", ErrValidation, h.Name)
			}
			if !names[h.Event][dep] {
				return fmt.Errorf("%w: hook %d (%s) depends on unknown hook %q", ErrValidation, i, h.Event, dep)
			}
		}
	}
	return nil
}
