// Package storage declares the logical tables the application persists to and
// opens them over a keyedstore backend.
package storage

import (
	"context"
	"strings"

	"pps/internal/keyedstore"
)

// Beneficiary attributes.
const (
	AttrUser        = "user"
	AttrGroup       = "group"
	AttrUnitUser    = "unit-user"
	AttrFullName    = "full-name"
	AttrNickname    = "nickname"
	AttrBirthdate   = "birthdate"
	AttrTarget      = "target"
	AttrScore       = "score"
	AttrNTasks      = "n_tasks"
	AttrBoughtItems = "bought_items"
)

// Task attributes, shared by the active task document and archived rows.
const (
	AttrObjective         = "objective"
	AttrOriginalObjective = "original-objective"
	AttrPersonalObjective = "personal-objective"
	AttrTasks             = "tasks"
	AttrDescription       = "description"
	AttrCompleted         = "completed"
	AttrCreated           = "created"
)

// Shop item attributes.
const (
	AttrCategory  = "category"
	AttrReleaseID = "release-id"
	AttrName      = "name"
	AttrPrice     = "price"
)

// IndexByGroup lists beneficiaries of a district group ordered by unit.
const IndexByGroup = "ByGroup"

// Path joins attribute names into a document path.
func Path(parts ...string) string {
	return strings.Join(parts, ".")
}

var (
	BeneficiariesSchema = keyedstore.Schema{
		Table:     "beneficiaries",
		Partition: keyedstore.KeyDef{Name: AttrUser},
		Indexes: []keyedstore.Index{{
			Name:      IndexByGroup,
			Partition: keyedstore.KeyDef{Name: AttrGroup},
			Sort:      &keyedstore.KeyDef{Name: AttrUnitUser},
		}},
	}

	TasksArchiveSchema = keyedstore.Schema{
		Table:     "tasks-archive",
		Partition: keyedstore.KeyDef{Name: AttrUser},
		Sort:      &keyedstore.KeyDef{Name: AttrObjective},
	}

	ItemsSchema = keyedstore.Schema{
		Table:     "items",
		Partition: keyedstore.KeyDef{Name: AttrCategory},
		Sort:      &keyedstore.KeyDef{Name: AttrReleaseID, Type: keyedstore.KeyNumber},
	}
)

// Schemas lists every table the application uses.
var Schemas = []keyedstore.Schema{BeneficiariesSchema, TasksArchiveSchema, ItemsSchema}

// Tables groups the table handles services share.
type Tables struct {
	Beneficiaries *keyedstore.Table
	TasksArchive  *keyedstore.Table
	Items         *keyedstore.Table
}

// Open binds every table to backend.
func Open(backend keyedstore.Backend) *Tables {
	return &Tables{
		Beneficiaries: keyedstore.New(BeneficiariesSchema, backend),
		TasksArchive:  keyedstore.New(TasksArchiveSchema, backend),
		Items:         keyedstore.New(ItemsSchema, backend),
	}
}

// NewMemory opens every table over a fresh in-process backend.
func NewMemory() *Tables {
	return Open(keyedstore.NewMemoryBackend())
}

// OpenPostgres creates any missing tables and indexes and binds them.
func OpenPostgres(ctx context.Context, backend *keyedstore.PostgresBackend) (*Tables, error) {
	for _, s := range Schemas {
		if err := backend.EnsureSchema(ctx, s); err != nil {
			return nil, err
		}
	}
	return Open(backend), nil
}
