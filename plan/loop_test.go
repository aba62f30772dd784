package plan_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rgeissen/uderia-sub003/events"
	"github.com/rgeissen/uderia-sub003/plan"
	"github.com/rgeissen/uderia-sub003/tools"
)

var _ = Describe("HallucinatedLoop", func() {
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

	It("fails when invoked without loop items", func() {
		o := &plan.HallucinatedLoop{Invoker: invoker, LLM: failingCaller{}, Sink: collector, State: state}

		_, err := o.Run(context.Background(), plan.Phase{Index: 1, Tool: "daily_sales"})

		var hallErr *plan.HallucinationError
		Expect(errorsAs(err, &hallErr)).To(BeTrue())
		Expect(invoker.callCount()).To(BeZero())
	})

	It("delegates a single temporal item to date-range expansion", func() {
		conversion := &scriptedCaller{responses: []string{
			`{"start_date": "2024-03-09", "end_date": "2024-03-10"}`,
		}}
		invoker.handler = func(tool string, args map[string]any) (*tools.Result, error) {
			if tool == "get_current_date" {
				return &tools.Result{Status: tools.StatusSuccess, Data: map[string]any{"current_date": "2024-03-10"}}, nil
			}
			return &tools.Result{Status: tools.StatusSuccess, Data: map[string]any{"date": args["date"]}}, nil
		}

		o := &plan.HallucinatedLoop{
			Invoker:   invoker,
			LLM:       failingCaller{}, // argument discovery must not run
			DateRange: &plan.DateRange{Invoker: invoker, LLM: conversion, Sink: collector, State: state},
			Sink:      collector,
			State:     state,
		}

		results, err := o.Run(context.Background(), plan.Phase{
			Index:    1,
			Tool:     "daily_sales",
			Args:     map[string]any{"region": "EU"},
			LoopOver: []string{"past 2 days"},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(2))

		Expect(eventTypesOf(collector)).To(ContainElement(events.TypePlanOptimization))
		Expect(invoker.callsFor("daily_sales")).To(HaveLen(2))
	})

	It("discovers the argument name and substitutes each item", func() {
		discovery := &scriptedCaller{responses: []string{
			`The items are country codes: {"argument_name": "country_code"}`,
		}}

		o := &plan.HallucinatedLoop{Invoker: invoker, LLM: discovery, Sink: collector, State: state}

		results, err := o.Run(context.Background(), plan.Phase{
			Index:    2,
			Tool:     "country_revenue",
			Args:     map[string]any{"year": 2024},
			LoopOver: []string{"DE", "FR", "IT"},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(3))
		Expect(discovery.callCount()).To(Equal(1))

		calls := invoker.callsFor("country_revenue")
		Expect(calls).To(HaveLen(3))
		Expect(calls[0].Args).To(HaveKeyWithValue("country_code", "DE"))
		Expect(calls[1].Args).To(HaveKeyWithValue("country_code", "FR"))
		Expect(calls[2].Args).To(HaveKeyWithValue("country_code", "IT"))
		Expect(calls[0].Args).To(HaveKeyWithValue("year", 2024))

		Expect(eventTypesOf(collector)).To(ContainElement(events.TypeSystemCorrection))

		published, ok := state.Results("result_of_phase_2")
		Expect(ok).To(BeTrue())
		Expect(published).To(HaveLen(3))
	})

	It("fails the phase when no argument fits the items", func() {
		discovery := &scriptedCaller{responses: []string{`{"argument_name": null}`}}

		o := &plan.HallucinatedLoop{Invoker: invoker, LLM: discovery, Sink: collector, State: state}

		_, err := o.Run(context.Background(), plan.Phase{
			Index:    3,
			Tool:     "country_revenue",
			LoopOver: []string{"one", "two"},
		})

		var hallErr *plan.HallucinationError
		Expect(errorsAs(err, &hallErr)).To(BeTrue())
		Expect(hallErr.Reason).To(ContainSubstring("no tool argument maps onto loop items"))
		Expect(invoker.callCount()).To(BeZero())
	})

	It("fails the phase when discovery returns no JSON", func() {
		discovery := &scriptedCaller{responses: []string{"I cannot tell."}}

		o := &plan.HallucinatedLoop{Invoker: invoker, LLM: discovery, Sink: collector, State: state}

		_, err := o.Run(context.Background(), plan.Phase{
			Index:    3,
			Tool:     "country_revenue",
			LoopOver: []string{"one", "two"},
		})

		var hallErr *plan.HallucinationError
		Expect(errorsAs(err, &hallErr)).To(BeTrue())
		Expect(invoker.callCount()).To(BeZero())
	})

	It("treats two temporal-looking items as a regular loop", func() {
		discovery := &scriptedCaller{responses: []string{`{"argument_name": "date"}`}}

		o := &plan.HallucinatedLoop{Invoker: invoker, LLM: discovery, Sink: collector, State: state}

		results, err := o.Run(context.Background(), plan.Phase{
			Index:    4,
			Tool:     "daily_sales",
			LoopOver: []string{"2024-03-09", "2024-03-10"},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(2))
		Expect(discovery.callCount()).To(Equal(1))
	})
})
