package costmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	v1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func TestNodeSelectorMatches(t *testing.T) {
	labels := map[string]string{"zone": "us-east", "disk": "ssd"}
	assert.True(t, nodeSelectorMatches(map[string]string{"zone": "us-east"}, labels))
	assert.False(t, nodeSelectorMatches(map[string]string{"zone": "us-west"}, labels))
	assert.True(t, nodeSelectorMatches(nil, labels))
}

func TestRequiredPodAntiAffinityMet_NoCandidatePodsSatisfies(t *testing.T) {
	task := newTask("t1", 100, 100)
	task.Namespace = "default"
	task.Affinity = &v1.Affinity{
		PodAntiAffinity: &v1.PodAntiAffinity{
			RequiredDuringSchedulingIgnoredDuringExecution: []v1.PodAffinityTerm{
				{LabelSelector: &metav1.LabelSelector{MatchLabels: map[string]string{"app": "x"}}},
			},
		},
	}
	assert.True(t, requiredPodAntiAffinityMet(task, nil), "absence of any candidate pod satisfies anti-affinity")
}

func TestRequiredPodAntiAffinityMet_ViolatedWhenMatchingPodPresent(t *testing.T) {
	task := newTask("t1", 100, 100)
	task.Namespace = "default"
	task.Affinity = &v1.Affinity{
		PodAntiAffinity: &v1.PodAntiAffinity{
			RequiredDuringSchedulingIgnoredDuringExecution: []v1.PodAffinityTerm{
				{LabelSelector: &metav1.LabelSelector{MatchLabels: map[string]string{"app": "x"}}},
			},
		},
	}
	other := newTask("t2", 100, 100)
	other.Namespace = "default"
	other.Labels = map[string]string{"app": "x"}
	assert.False(t, requiredPodAntiAffinityMet(task, []*TaskDescriptor{other}))
}

func TestRequiredPodAffinityMet(t *testing.T) {
	task := newTask("t1", 100, 100)
	task.Namespace = "default"
	task.Affinity = &v1.Affinity{
		PodAffinity: &v1.PodAffinity{
			RequiredDuringSchedulingIgnoredDuringExecution: []v1.PodAffinityTerm{
				{LabelSelector: &metav1.LabelSelector{MatchLabels: map[string]string{"app": "x"}}},
			},
		},
	}
	assert.False(t, requiredPodAffinityMet(task, nil))

	other := newTask("t2", 100, 100)
	other.Namespace = "default"
	other.Labels = map[string]string{"app": "x"}
	assert.True(t, requiredPodAffinityMet(task, []*TaskDescriptor{other}))
}

func TestLabelSelectorRequirementMatches_Operators(t *testing.T) {
	labels := map[string]string{"env": "prod"}
	assert.True(t, labelSelectorRequirementMatches(metav1.LabelSelectorRequirement{Key: "env", Operator: metav1.LabelSelectorOpIn, Values: []string{"prod", "staging"}}, labels))
	assert.False(t, labelSelectorRequirementMatches(metav1.LabelSelectorRequirement{Key: "env", Operator: metav1.LabelSelectorOpNotIn, Values: []string{"prod"}}, labels))
	assert.True(t, labelSelectorRequirementMatches(metav1.LabelSelectorRequirement{Key: "env", Operator: metav1.LabelSelectorOpExists}, labels))
	assert.False(t, labelSelectorRequirementMatches(metav1.LabelSelectorRequirement{Key: "missing", Operator: metav1.LabelSelectorOpExists}, labels))
	assert.True(t, labelSelectorRequirementMatches(metav1.LabelSelectorRequirement{Key: "missing", Operator: metav1.LabelSelectorOpDoesNotExist}, labels))
}

func TestLabelSelectorRequirementMatches_UnknownOperatorPanics(t *testing.T) {
	assert.Panics(t, func() {
		labelSelectorRequirementMatches(metav1.LabelSelectorRequirement{Key: "env", Operator: "Bogus"}, map[string]string{"env": "prod"})
	})
}

func TestFindMatchingUntoleratedTaint(t *testing.T) {
	taints := []v1.Taint{{Key: "dedicated", Value: "gpu", Effect: v1.TaintEffectNoSchedule}}
	_, untolerated := findMatchingUntoleratedTaint(taints, nil)
	assert.True(t, untolerated)

	tolerations := []v1.Toleration{{Key: "dedicated", Operator: v1.TolerationOpEqual, Value: "gpu", Effect: v1.TaintEffectNoSchedule}}
	_, untolerated = findMatchingUntoleratedTaint(taints, tolerations)
	assert.False(t, untolerated)
}

func TestExplain_EvaluatesEveryPredicate(t *testing.T) {
	machine := newMachine(1000, 1000, 1, map[string]string{"zone": "us-west"})
	task := newTask("t1", 100, 100)
	task.NodeSelector = map[string]string{"zone": "us-east"}

	results := Explain(machine, task, nil)
	assert.Len(t, results, 5)
	assert.Equal(t, "nodeSelector", results[0].Predicate)
	assert.False(t, results[0].Satisfied)
	for _, r := range results[1:] {
		assert.True(t, r.Satisfied)
	}
}
