package beneficiary

import (
	"fmt"
	"time"

	"pps/internal/economy"
	"pps/internal/keyedstore"
	"pps/internal/storage"
	"pps/internal/tasks"
	"pps/pkg/domain"
)

// Beneficiary is a program participant and their score ledger.
type Beneficiary struct {
	User        string            `json:"user"`
	Group       string            `json:"group"`
	UnitUser    string            `json:"unit-user"`
	FullName    string            `json:"full-name"`
	Nickname    string            `json:"nickname"`
	Birthdate   string            `json:"birthdate"`
	Stage       domain.Stage      `json:"stage"`
	Target      *tasks.ActiveTask `json:"target"`
	Score       map[string]int64  `json:"score"`
	NTasks      map[string]int64  `json:"n_tasks"`
	BoughtItems map[string]int64  `json:"bought_items"`
}

// Registration is the payload of Create.
type Registration struct {
	User      string
	District  string
	Group     string
	Unit      domain.Unit
	FullName  string
	Nickname  string
	Birthdate time.Time
}

func zeroLedger() map[string]any {
	out := map[string]any{}
	for k, v := range domain.ZeroLedger() {
		out[k] = v
	}
	return out
}

func (r Registration) document() keyedstore.Item {
	return keyedstore.Item{
		storage.AttrGroup:       domain.JoinKey(r.District, r.Group),
		storage.AttrUnitUser:    domain.JoinKey(string(r.Unit), r.User),
		storage.AttrFullName:    r.FullName,
		storage.AttrNickname:    r.Nickname,
		storage.AttrBirthdate:   domain.FormatDate(r.Birthdate),
		storage.AttrTarget:      nil,
		storage.AttrScore:       zeroLedger(),
		storage.AttrNTasks:      zeroLedger(),
		storage.AttrBoughtItems: map[string]any{},
	}
}

// fromItem decodes a stored beneficiary. The stage is derived from the
// birthdate as of asOf and is empty when the birthdate is unreadable.
func fromItem(it keyedstore.Item, asOf time.Time) (*Beneficiary, error) {
	target, err := tasks.ActiveTaskFrom(it[storage.AttrTarget])
	if err != nil {
		return nil, fmt.Errorf("beneficiary %s: %w", it.String(storage.AttrUser), err)
	}
	b := &Beneficiary{
		User:        it.String(storage.AttrUser),
		Group:       it.String(storage.AttrGroup),
		UnitUser:    it.String(storage.AttrUnitUser),
		FullName:    it.String(storage.AttrFullName),
		Nickname:    it.String(storage.AttrNickname),
		Birthdate:   it.String(storage.AttrBirthdate),
		Target:      target,
		Score:       ledger(it.Map(storage.AttrScore)),
		NTasks:      ledger(it.Map(storage.AttrNTasks)),
		BoughtItems: ledger(it.Map(storage.AttrBoughtItems)),
	}
	if birth, err := domain.ParseDate(b.Birthdate); err == nil {
		b.Stage = economy.ClassifyStage(birth, asOf)
	}
	return b, nil
}

func ledger(m map[string]any) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		switch n := v.(type) {
		case int64:
			out[k] = n
		case float64:
			out[k] = int64(n)
		}
	}
	return out
}
