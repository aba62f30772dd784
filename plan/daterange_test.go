package plan_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rgeissen/uderia-sub003/events"
	"github.com/rgeissen/uderia-sub003/plan"
	"github.com/rgeissen/uderia-sub003/tools"
)

var _ = Describe("DateRange", func() {
	var (
		invoker   *recordingInvoker
		state     *plan.WorkflowState
		collector *events.Collector
	)

	BeforeEach(func() {
		invoker = &recordingInvoker{}
		state = plan.NewWorkflowState()
		collector = events.NewCollector()
	})

	dailySales := func(dates ...string) []*tools.Result {
		out := make([]*tools.Result, len(dates))
		for i, d := range dates {
			out[i] = &tools.Result{
				Status: tools.StatusSuccess,
				Data:   map[string]any{"date": d, "total": float64(i + 1)},
			}
		}
		return out
	}

	Context("with pre-calculated dates from a prior phase", func() {
		BeforeEach(func() {
			Expect(state.Publish(1, dailySales("2024-03-08", "2024-03-09", "2024-03-10"))).To(Succeed())
		})

		It("reuses the dates without any LLM call", func() {
			o := &plan.DateRange{Invoker: invoker, LLM: failingCaller{}, Sink: collector, State: state}

			results, err := o.Run(context.Background(), plan.Phase{
				Index: 2,
				Tool:  "daily_sales",
				Args:  map[string]any{"date": "result_of_phase_1", "region": "EU"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(3))

			calls := invoker.callsFor("daily_sales")
			Expect(calls).To(HaveLen(3))
			Expect(calls[0].Args).To(HaveKeyWithValue("date", "2024-03-08"))
			Expect(calls[1].Args).To(HaveKeyWithValue("date", "2024-03-09"))
			Expect(calls[2].Args).To(HaveKeyWithValue("date", "2024-03-10"))
			Expect(calls[0].Args).To(HaveKeyWithValue("region", "EU"))

			Expect(eventTypesOf(collector)).To(ContainElement(events.TypePlanOptimization))

			published, ok := state.Results("result_of_phase_2")
			Expect(ok).To(BeTrue())
			Expect(published).To(HaveLen(3))
		})

		It("accepts the reference in placeholder form", func() {
			o := &plan.DateRange{Invoker: invoker, LLM: failingCaller{}, Sink: collector, State: state}

			results, err := o.Run(context.Background(), plan.Phase{
				Index: 2,
				Tool:  "daily_sales",
				Args: map[string]any{
					"date": map[string]any{"source": "result_of_phase_1", "key": "date"},
				},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(3))
		})
	})

	Context("with a phase reference that resolved to nothing", func() {
		It("aborts before any tool call", func() {
			o := &plan.DateRange{Invoker: invoker, LLM: failingCaller{}, Sink: collector, State: state}

			_, err := o.Run(context.Background(), plan.Phase{
				Index: 2,
				Tool:  "daily_sales",
				Args:  map[string]any{"date": "result_of_phase_1"},
			})

			var hallErr *plan.HallucinationError
			Expect(errorsAs(err, &hallErr)).To(BeTrue())
			Expect(hallErr.Phase).To(Equal(2))
			Expect(hallErr.Reason).To(ContainSubstring("result_of_phase_1"))
			Expect(invoker.callCount()).To(BeZero())
		})

		It("aborts when the prior phase carries no date records", func() {
			Expect(state.Publish(1, []*tools.Result{
				{Status: tools.StatusSuccess, Data: map[string]any{"total": 42.0}},
			})).To(Succeed())
			o := &plan.DateRange{Invoker: invoker, LLM: failingCaller{}, Sink: collector, State: state}

			_, err := o.Run(context.Background(), plan.Phase{
				Index: 2,
				Tool:  "daily_sales",
				Args:  map[string]any{"date": "result_of_phase_1"},
			})

			var hallErr *plan.HallucinationError
			Expect(errorsAs(err, &hallErr)).To(BeTrue())
			Expect(hallErr.Reason).To(ContainSubstring("no usable date records"))
			Expect(invoker.callCount()).To(BeZero())
		})
	})

	Context("with an unresolved placeholder", func() {
		It("aborts before any tool call", func() {
			o := &plan.DateRange{Invoker: invoker, LLM: failingCaller{}, Sink: collector, State: state}

			_, err := o.Run(context.Background(), plan.Phase{
				Index: 3,
				Tool:  "daily_sales",
				Args: map[string]any{
					"date": map[string]any{"source": "result_of_phase_1", "key": "date"},
				},
			})

			var hallErr *plan.HallucinationError
			Expect(errorsAs(err, &hallErr)).To(BeTrue())
			Expect(hallErr.Phase).To(Equal(3))
			Expect(hallErr.Reason).To(ContainSubstring("unresolved placeholder"))
			Expect(invoker.callCount()).To(BeZero())
		})
	})

	Context("with a temporal phrase inside the arguments", func() {
		It("aborts before any tool call", func() {
			o := &plan.DateRange{Invoker: invoker, LLM: failingCaller{}, Sink: collector, State: state}

			_, err := o.Run(context.Background(), plan.Phase{
				Index: 4,
				Tool:  "daily_sales",
				Args:  map[string]any{"date": "past 3 days"},
			})

			var hallErr *plan.HallucinationError
			Expect(errorsAs(err, &hallErr)).To(BeTrue())
			Expect(hallErr.Reason).To(ContainSubstring("unconverted temporal phrase"))
			Expect(invoker.callCount()).To(BeZero())
		})
	})

	Context("with a single concrete date", func() {
		It("invokes the tool exactly once with unchanged arguments", func() {
			o := &plan.DateRange{Invoker: invoker, LLM: failingCaller{}, Sink: collector, State: state}

			results, err := o.Run(context.Background(), plan.Phase{
				Index: 5,
				Tool:  "daily_sales",
				Args:  map[string]any{"date": "2024-03-09", "region": "EU"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))

			Expect(invoker.callCount()).To(Equal(1))
			Expect(invoker.calls[0].Args).To(Equal(map[string]any{
				"date":   "2024-03-09",
				"region": "EU",
			}))
		})
	})

	Context("with a natural-language range hint", func() {
		var caller *scriptedCaller

		BeforeEach(func() {
			caller = &scriptedCaller{responses: []string{
				"```json\n{\"start_date\": \"2024-03-08\", \"end_date\": \"2024-03-10\"}\n```",
			}}
			invoker.handler = func(tool string, args map[string]any) (*tools.Result, error) {
				if tool == "get_current_date" {
					return &tools.Result{
						Status: tools.StatusSuccess,
						Data:   map[string]any{"current_date": "2024-03-10"},
					}, nil
				}
				return &tools.Result{Status: tools.StatusSuccess, Data: map[string]any{"date": args["date"]}}, nil
			}
		})

		It("converts the phrase and expands into daily invocations", func() {
			o := &plan.DateRange{Invoker: invoker, LLM: caller, Sink: collector, State: state}

			results, err := o.Run(context.Background(), plan.Phase{
				Index:     1,
				Tool:      "daily_sales",
				Args:      map[string]any{"region": "EU"},
				RangeHint: "past 3 days",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(3))
			Expect(caller.callCount()).To(Equal(1))

			Expect(invoker.callsFor("get_current_date")).To(HaveLen(1))
			calls := invoker.callsFor("daily_sales")
			Expect(calls).To(HaveLen(3))
			Expect(calls[0].Args["date"]).To(Equal("2024-03-08"))
			Expect(calls[2].Args["date"]).To(Equal("2024-03-10"))

			types := eventTypesOf(collector)
			Expect(types).To(ContainElement(events.TypeSystemCorrection))
			Expect(types).To(ContainElement(events.TypeStatusIndicatorUpdate))
		})

		It("normalizes reversed boundaries", func() {
			caller.responses = []string{`{"start_date": "2024-03-10", "end_date": "2024-03-08"}`}
			o := &plan.DateRange{Invoker: invoker, LLM: caller, Sink: collector, State: state}

			_, err := o.Run(context.Background(), plan.Phase{
				Index:     1,
				Tool:      "daily_sales",
				RangeHint: "the last few days",
				Args:      map[string]any{},
			})
			Expect(err).NotTo(HaveOccurred())

			calls := invoker.callsFor("daily_sales")
			Expect(calls).To(HaveLen(3))
			Expect(calls[0].Args["date"]).To(Equal("2024-03-08"))
		})

		It("skips failed days but keeps the rest", func() {
			invoker.handler = func(tool string, args map[string]any) (*tools.Result, error) {
				if tool == "get_current_date" {
					return &tools.Result{Status: tools.StatusSuccess, Data: map[string]any{"current_date": "2024-03-10"}}, nil
				}
				if args["date"] == "2024-03-09" {
					return &tools.Result{Status: tools.StatusFailure, Error: "no data"}, nil
				}
				return &tools.Result{Status: tools.StatusSuccess, Data: map[string]any{"date": args["date"]}}, nil
			}
			o := &plan.DateRange{Invoker: invoker, LLM: caller, Sink: collector, State: state}

			results, err := o.Run(context.Background(), plan.Phase{
				Index:     1,
				Tool:      "daily_sales",
				RangeHint: "past 3 days",
				Args:      map[string]any{},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			Expect(invoker.callsFor("daily_sales")).To(HaveLen(3))
			Expect(state.Trace()).To(HaveLen(3))
		})

		It("rejects malformed conversion output", func() {
			caller.responses = []string{`{"start_date": "soon", "end_date": "later"}`}
			o := &plan.DateRange{Invoker: invoker, LLM: caller, Sink: collector, State: state}

			_, err := o.Run(context.Background(), plan.Phase{
				Index:     1,
				Tool:      "daily_sales",
				RangeHint: "past 3 days",
				Args:      map[string]any{},
			})

			var hallErr *plan.HallucinationError
			Expect(errorsAs(err, &hallErr)).To(BeTrue())
			Expect(hallErr.Reason).To(ContainSubstring("malformed boundaries"))
			Expect(invoker.callsFor("daily_sales")).To(BeEmpty())
		})
	})

	Context("without any date aspect", func() {
		It("falls through to a single invocation", func() {
			o := &plan.DateRange{Invoker: invoker, LLM: failingCaller{}, Sink: collector, State: state}

			results, err := o.Run(context.Background(), plan.Phase{
				Index: 1,
				Tool:  "list_tables",
				Args:  map[string]any{"schema": "public"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(invoker.callCount()).To(Equal(1))
		})
	})
})
