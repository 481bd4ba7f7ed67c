package costmodel

import (
	"sort"
	"strconv"
	"sync"

	"github.com/hashicorp/go-memdb"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// machineSlot is a single row of the machine EC fan-out table: "this
// EC is the k-th placement slot on this machine" (spec.md §4.3). It is
// stored in a go-memdb table so GetEquivClassToEquivClassesArcs can
// iterate a machine's slots in index order without the cost model
// keeping a second, hand-rolled ordered structure — the same role
// go-memdb plays for the teacher's node index.
type machineSlot struct {
	// Key is the memdb primary key: "<machineID>/<index>".
	Key string
	EC        EquivClassId
	MachineID ResourceId
	// MachineKey is MachineID.String(), materialized because memdb's
	// StringFieldIndex needs a string-kinded field to index on.
	MachineKey string
	Index      uint64
}

func machineSlotSchema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			"slot": {
				Name: "slot",
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Key"},
					},
					"ec": {
						Name:    "ec",
						Unique:  true,
						Indexer: &memdb.UintFieldIndex{Field: "EC"},
					},
					"machine": {
						Name:    "machine",
						Unique:  false,
						Indexer: &memdb.StringFieldIndex{Field: "MachineKey"},
					},
				},
			},
		},
	}
}

// machineIndex owns spec.md §3's ec_to_machine, ec_to_index, and
// machine_ecs tables.
type machineIndex struct {
	db *memdb.MemDB

	cfg Config

	clampWarnOnce sync.Map // ResourceId -> *sync.Once, per spec.md §7
}

func newMachineIndex(cfg Config) *machineIndex {
	db, err := memdb.NewMemDB(machineSlotSchema())
	if err != nil {
		// The schema above is a compile-time constant; a validation
		// failure here is a programming error in this package.
		panic(errors.Wrap(err, "costmodel: invalid machine slot schema"))
	}
	return &machineIndex{db: db, cfg: cfg}
}

// fanOutSize returns K for a machine with the given max_pods, applying
// the configured cap (spec.md §3 invariant 2, §7 "index cap exceeded").
func (mi *machineIndex) fanOutSize(machineID ResourceId, maxPods uint64) uint64 {
	k := maxPods
	if mi.cfg.MaxMultiArcsForCPU > 0 && k > mi.cfg.MaxMultiArcsForCPU {
		k = mi.cfg.MaxMultiArcsForCPU
		onceVal, _ := mi.clampWarnOnce.LoadOrStore(machineID, &sync.Once{})
		onceVal.(*sync.Once).Do(func() {
			log.WithFields(log.Fields{
				"machine": machineID,
				"maxPods": maxPods,
				"cap":     mi.cfg.MaxMultiArcsForCPU,
			}).Warn("costmodel: machine max_pods exceeds max_multi_arcs_for_cpu, clamping fan-out")
		})
	}
	return k
}

// AddMachine registers K = fanOutSize(machine.MaxPods) equivalence
// class slots for machine, indexed 0..K-1, per spec.md §4.3 and §4.7.
// Any failure reverts the whole insert (spec.md §4.7 "atomically").
func (mi *machineIndex) AddMachine(machine *ResourceDescriptor) error {
	k := mi.fanOutSize(machine.ID, machine.MaxPods)
	txn := mi.db.Txn(true)
	for i := uint64(0); i < k; i++ {
		ec := EquivClassId(hashMachineSlot(machine.FriendlyName, i))
		row := &machineSlot{
			Key:        machineSlotKey(machine.ID, i),
			EC:         ec,
			MachineID:  machine.ID,
			MachineKey: machine.ID.String(),
			Index:      i,
		}
		if err := txn.Insert("slot", row); err != nil {
			txn.Abort()
			return errors.Wrapf(err, "costmodel: failed to register slot %d for machine %s", i, machine.ID)
		}
	}
	txn.Commit()
	return nil
}

// RemoveMachine erases every EC machine fans out to, per spec.md §4.7.
func (mi *machineIndex) RemoveMachine(machineID ResourceId) error {
	txn := mi.db.Txn(true)
	_, err := txn.DeleteAll("slot", "machine", machineID.String())
	if err != nil {
		txn.Abort()
		return errors.Wrapf(err, "costmodel: failed to remove machine %s", machineID)
	}
	txn.Commit()
	mi.clampWarnOnce.Delete(machineID)
	return nil
}

// Slots returns machine_ecs[machineID], ordered by slot index.
func (mi *machineIndex) Slots(machineID ResourceId) []machineSlot {
	txn := mi.db.Txn(false)
	it, err := txn.Get("slot", "machine", machineID.String())
	if err != nil {
		return nil
	}
	var rows []machineSlot
	for obj := it.Next(); obj != nil; obj = it.Next() {
		rows = append(rows, *obj.(*machineSlot))
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Index < rows[j].Index })
	return rows
}

// MachineAndIndexForEC returns the machine and slot index a
// machine-side EC represents. found is false if ec is unknown.
func (mi *machineIndex) MachineAndIndexForEC(ec EquivClassId) (machineID ResourceId, index uint64, found bool) {
	txn := mi.db.Txn(false)
	obj, err := txn.First("slot", "ec", ec)
	if err != nil || obj == nil {
		return ResourceId{}, 0, false
	}
	row := obj.(*machineSlot)
	return row.MachineID, row.Index, true
}

func machineSlotKey(machineID ResourceId, index uint64) string {
	return machineID.String() + "/" + strconv.FormatUint(index, 10)
}
