package costmodel

import (
	"fmt"

	"github.com/segmentio/fasthash/fnv1a"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// hashJobId returns the seed used for an EC representing all tasks of
// a job that carry an affinity block (spec.md §4.2 step 1).
func hashJobId(id JobId) uint64 {
	h := fnv1a.Init64
	h = fnv1a.AddString64(h, "job")
	h = fnv1a.AddString64(h, string(id))
	return h
}

// hashCPUMem returns the seed shared by every task requesting the same
// (cpu, ram), per spec.md §4.2 step 3.
func hashCPUMem(req ResourceRequest) uint64 {
	h := fnv1a.Init64
	h = fnv1a.AddString64(h, fmt.Sprintf("%dcpumem%d", req.CPUMillis, req.RAMBytes))
	return h
}

// hashLabelSelectorsAndCPUMem combines the task's label selectors with its
// resource request, per spec.md §4.2 step 2. Match labels are sorted
// so the hash is independent of map iteration order.
func hashLabelSelectorsAndCPUMem(sel *metav1.LabelSelector, req ResourceRequest) uint64 {
	h := fnv1a.Init64
	h = fnv1a.AddString64(h, "labelselector")
	keys := maps.Keys(sel.MatchLabels)
	slices.Sort(keys)
	for _, k := range keys {
		h = fnv1a.AddString64(h, k)
		h = fnv1a.AddString64(h, sel.MatchLabels[k])
	}
	for _, expr := range sel.MatchExpressions {
		h = fnv1a.AddString64(h, expr.Key)
		h = fnv1a.AddString64(h, string(expr.Operator))
		values := slices.Clone(expr.Values)
		slices.Sort(values)
		for _, v := range values {
			h = fnv1a.AddString64(h, v)
		}
	}
	h = fnv1a.AddUint64(h, hashCPUMem(req))
	return h
}

// hashMachineSlot hashes a machine's fan-out slot k, per spec.md §4.3.
func hashMachineSlot(friendlyName string, index uint64) uint64 {
	h := fnv1a.Init64
	h = fnv1a.AddString64(h, "machineslot")
	h = fnv1a.AddString64(h, friendlyName)
	h = fnv1a.AddUint64(h, index)
	return h
}
