package plan_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rgeissen/uderia-sub003/plan"
	"github.com/rgeissen/uderia-sub003/tools"
)

var _ = Describe("WorkflowState", func() {
	var state *plan.WorkflowState

	BeforeEach(func() {
		state = plan.NewWorkflowState()
	})

	It("publishes and reads back phase results", func() {
		results := []*tools.Result{{Status: tools.StatusSuccess}}
		Expect(state.Publish(1, results)).To(Succeed())

		got, ok := state.Results("result_of_phase_1")
		Expect(ok).To(BeTrue())
		Expect(got).To(HaveLen(1))

		_, ok = state.Results("result_of_phase_2")
		Expect(ok).To(BeFalse())
	})

	It("rejects writing the same phase key twice", func() {
		Expect(state.Publish(1, nil)).To(Succeed())
		err := state.Publish(1, nil)
		Expect(err).To(MatchError(ContainSubstring(`"result_of_phase_1" already written`)))
	})

	It("records the invocation trace in order", func() {
		state.AppendTrace("a", map[string]any{"x": 1}, &tools.Result{Status: tools.StatusSuccess})
		state.AppendTrace("b", nil, &tools.Result{Status: tools.StatusFailure})

		trace := state.Trace()
		Expect(trace).To(HaveLen(2))
		Expect(trace[0].Tool).To(Equal("a"))
		Expect(trace[1].Tool).To(Equal("b"))
	})

	It("returns a copy of the trace", func() {
		state.AppendTrace("a", nil, nil)
		trace := state.Trace()
		trace[0].Tool = "mutated"
		Expect(state.Trace()[0].Tool).To(Equal("a"))
	})
})

var _ = Describe("Phase helpers", func() {
	Describe("IsTemporalPhrase", func() {
		It("matches relative date phrases", func() {
			Expect(plan.IsTemporalPhrase("past 3 days")).To(BeTrue())
			Expect(plan.IsTemporalPhrase("Last 2 Weeks")).To(BeTrue())
			Expect(plan.IsTemporalPhrase("next 1 month")).To(BeTrue())
			Expect(plan.IsTemporalPhrase("yesterday")).To(BeTrue())
		})

		It("rejects concrete dates and ordinary text", func() {
			Expect(plan.IsTemporalPhrase("2024-03-09")).To(BeFalse())
			Expect(plan.IsTemporalPhrase("sales report")).To(BeFalse())
			Expect(plan.IsTemporalPhrase("the past is gone")).To(BeFalse())
		})
	})

	Describe("IsISODate", func() {
		It("accepts YYYY-MM-DD", func() {
			Expect(plan.IsISODate("2024-03-09")).To(BeTrue())
			Expect(plan.IsISODate(" 2024-12-31 ")).To(BeTrue())
		})

		It("rejects other formats", func() {
			Expect(plan.IsISODate("03/09/2024")).To(BeFalse())
			Expect(plan.IsISODate("2024-13-01")).To(BeFalse())
			Expect(plan.IsISODate("tomorrow")).To(BeFalse())
		})
	})

	Describe("ParsePhaseRef", func() {
		It("extracts the phase number", func() {
			n, ok := plan.ParsePhaseRef("result_of_phase_7")
			Expect(ok).To(BeTrue())
			Expect(n).To(Equal(7))
		})

		It("rejects non-references", func() {
			_, ok := plan.ParsePhaseRef("phase_7")
			Expect(ok).To(BeFalse())
			_, ok = plan.ParsePhaseRef("result_of_phase_x")
			Expect(ok).To(BeFalse())
		})
	})

	Describe("AsPlaceholder", func() {
		It("recognizes source/key dicts", func() {
			ph, ok := plan.AsPlaceholder(map[string]any{"source": "result_of_phase_1", "key": "date"})
			Expect(ok).To(BeTrue())
			Expect(ph.Source).To(Equal("result_of_phase_1"))
			Expect(ph.Key).To(Equal("date"))
		})

		It("rejects plain values and unrelated maps", func() {
			_, ok := plan.AsPlaceholder("2024-03-09")
			Expect(ok).To(BeFalse())
			_, ok = plan.AsPlaceholder(map[string]any{"foo": "bar"})
			Expect(ok).To(BeFalse())
		})
	})
})
