package httptransport

import (
	"fmt"
	"strings"
	"time"

	"pps/internal/economy"
	"pps/internal/tasks"
	"pps/pkg/domain"
	dErrors "pps/pkg/domain-errors"
)

const (
	maxDescriptionLen = 2000
	maxSubTasks       = 50
)

// AssignRequest is the body of POST /api/users/{sub}/tasks/{stage}/{area}/{subline}/.
type AssignRequest struct {
	Description string   `json:"description"`
	SubTasks    []string `json:"sub-tasks"`
}

func (r *AssignRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Description = strings.TrimSpace(r.Description)
	if len(r.Description) > maxDescriptionLen {
		return dErrors.New(dErrors.CodeValidation, "description is too long")
	}
	if len(r.SubTasks) > maxSubTasks {
		return dErrors.New(dErrors.CodeValidation, "too many sub-tasks")
	}
	for i, st := range r.SubTasks {
		r.SubTasks[i] = strings.TrimSpace(st)
		if r.SubTasks[i] == "" {
			return dErrors.New(dErrors.CodeValidation, "sub-task descriptions cannot be empty")
		}
	}
	return nil
}

// SubTaskBody is one sub-task of an update.
type SubTaskBody struct {
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}

// UpdateTaskRequest is the body of PUT /api/users/{sub}/tasks/active/.
// Omitted fields are left unchanged; sub-tasks replaces the whole list.
type UpdateTaskRequest struct {
	Description *string        `json:"description"`
	SubTasks    *[]SubTaskBody `json:"sub-tasks"`
}

func (r *UpdateTaskRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Description == nil && r.SubTasks == nil {
		return dErrors.New(dErrors.CodeValidation, "description or sub-tasks is required")
	}
	if r.Description != nil && len(*r.Description) > maxDescriptionLen {
		return dErrors.New(dErrors.CodeValidation, "description is too long")
	}
	if r.SubTasks != nil {
		if len(*r.SubTasks) > maxSubTasks {
			return dErrors.New(dErrors.CodeValidation, "too many sub-tasks")
		}
		for _, st := range *r.SubTasks {
			if strings.TrimSpace(st.Description) == "" {
				return dErrors.New(dErrors.CodeValidation, "sub-task descriptions cannot be empty")
			}
		}
	}
	return nil
}

func (r *UpdateTaskRequest) toUpdate() tasks.TaskUpdate {
	u := tasks.TaskUpdate{PersonalObjective: r.Description}
	if r.SubTasks != nil {
		u.SubTasks = make([]tasks.SubTask, len(*r.SubTasks))
		for i, st := range *r.SubTasks {
			u.SubTasks[i] = tasks.SubTask{Description: strings.TrimSpace(st.Description), Completed: st.Completed}
		}
	}
	return u
}

// BuyRequest is the body of POST /api/beneficiaries/{sub}/shop/{category}/{release}/{id}/.
type BuyRequest struct {
	Area   string `json:"area"`
	Amount int64  `json:"amount"`

	parsedArea domain.Area
}

func (r *BuyRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	area, err := domain.ParseArea(strings.TrimSpace(r.Area))
	if err != nil {
		return err
	}
	r.parsedArea = area
	if r.Amount == 0 {
		r.Amount = 1
	}
	if r.Amount < 0 {
		return dErrors.New(dErrors.CodeValidation, "amount must be positive")
	}
	if r.Amount > economy.MaxPurchaseQuantity {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("amount cannot exceed %d", economy.MaxPurchaseQuantity))
	}
	return nil
}

// ParsedArea returns the validated area.
func (r *BuyRequest) ParsedArea() domain.Area {
	return r.parsedArea
}

// RegisterRequest is the body of POST /districts/{district}/groups/{group}/beneficiaries/.
// The user id comes from the bearer token.
type RegisterRequest struct {
	Unit      string `json:"unit"`
	FullName  string `json:"full-name"`
	Nickname  string `json:"nickname"`
	Birthdate string `json:"birthdate"`

	parsedUnit      domain.Unit
	parsedBirthdate time.Time
}

func (r *RegisterRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	unit, err := domain.ParseUnit(strings.TrimSpace(r.Unit))
	if err != nil {
		return err
	}
	r.FullName = strings.TrimSpace(r.FullName)
	r.Nickname = strings.TrimSpace(r.Nickname)
	if r.FullName == "" {
		return dErrors.New(dErrors.CodeValidation, "full-name is required")
	}
	birth, err := domain.ParseDate(strings.TrimSpace(r.Birthdate))
	if err != nil {
		return err
	}
	r.parsedUnit = unit
	r.parsedBirthdate = birth
	return nil
}
