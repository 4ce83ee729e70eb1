package questionnaire

import "journey_backend/internal/model"

// Access is the state that decides whether a render of the form is editable.
type Access struct {
	Role      model.Role
	Approved  bool
	Submitted bool
	// EditMode is the privileged actor's UI toggle. The server never sees it.
	EditMode bool
}

// PhaseWritable reports whether the role may write at all in the current phase.
// Customers get the form once it has been approved; admins are read-only
// until approval.
func (a Access) PhaseWritable() bool {
	switch a.Role {
	case model.RoleCustomer, model.RoleAdmin:
		return a.Approved
	}
	return false
}

// WriteAllowed is the rule the server enforces. Submission locks the form for
// the customer; the privileged actor keeps the edit-mode path.
func (a Access) WriteAllowed() bool {
	if !a.PhaseWritable() {
		return false
	}
	if a.Role == model.RoleCustomer && a.Submitted {
		return false
	}
	return true
}

// ReadOnly is the full composition used by a form render.
func (a Access) ReadOnly() bool {
	if !a.WriteAllowed() {
		return true
	}
	return a.Role.Privileged() && !a.EditMode
}

// SubmitReachable reports whether the customer-facing submit transition exists
// for this render, ignoring completion of required questions.
func (a Access) SubmitReachable() bool {
	return a.Role == model.RoleCustomer && a.Approved && !a.Submitted
}
