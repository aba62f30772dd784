package plan_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rgeissen/uderia-sub003/events"
	"github.com/rgeissen/uderia-sub003/plan"
	"github.com/rgeissen/uderia-sub003/tools"
)

var _ = Describe("ColumnIteration", func() {
	var (
		invoker   *recordingInvoker
		state     *plan.WorkflowState
		collector *events.Collector
	)

	columns := []any{
		map[string]any{"name": "amount", "type": "DECIMAL(10,2)"},
		map[string]any{"name": "customer_name", "type": "VARCHAR(255)"},
		map[string]any{"name": "quantity", "type": "INTEGER"},
	}

	BeforeEach(func() {
		invoker = &recordingInvoker{}
		state = plan.NewWorkflowState()
		collector = events.NewCollector()
		invoker.handler = func(tool string, args map[string]any) (*tools.Result, error) {
			if tool == "get_column_metadata" {
				return &tools.Result{Status: tools.StatusSuccess, Data: columns}, nil
			}
			return &tools.Result{
				Status: tools.StatusSuccess,
				Data:   map[string]any{"column": args["column_name"]},
			}, nil
		}
	})

	It("expands a numeric tool across compatible columns and skips the rest", func() {
		o := &plan.ColumnIteration{Invoker: invoker, Sink: collector, State: state}

		results, err := o.Run(context.Background(), plan.Phase{
			Index: 1,
			Tool:  "column_average",
			Args:  map[string]any{"table_name": "orders", "column_name": "all"},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(3))

		calls := invoker.callsFor("column_average")
		Expect(calls).To(HaveLen(2))
		Expect(calls[0].Args).To(HaveKeyWithValue("column_name", "amount"))
		Expect(calls[1].Args).To(HaveKeyWithValue("column_name", "quantity"))
		Expect(calls[0].Args).To(HaveKeyWithValue("table_name", "orders"))

		skip := results[1]
		Expect(skip.Status).To(Equal(tools.StatusPartial))
		data := skip.Data.(map[string]any)
		Expect(data["skipped"]).To(BeTrue())
		Expect(data["column"]).To(Equal("customer_name"))
		Expect(data["reason"]).To(ContainSubstring("requires a numeric column"))

		Expect(eventTypesOf(collector)).To(ContainElement(events.TypeSystemCorrection))

		published, ok := state.Results("result_of_phase_1")
		Expect(ok).To(BeTrue())
		Expect(published).To(HaveLen(3))
	})

	It("expands a character tool across text columns only", func() {
		o := &plan.ColumnIteration{Invoker: invoker, Sink: collector, State: state}

		_, err := o.Run(context.Background(), plan.Phase{
			Index: 1,
			Tool:  "distinct_terms",
			Args:  map[string]any{"table_name": "orders"},
		})
		Expect(err).NotTo(HaveOccurred())

		calls := invoker.callsFor("distinct_terms")
		Expect(calls).To(HaveLen(1))
		Expect(calls[0].Args).To(HaveKeyWithValue("column_name", "customer_name"))
	})

	It("runs an unconstrained tool against every column", func() {
		o := &plan.ColumnIteration{Invoker: invoker, Sink: collector, State: state}

		results, err := o.Run(context.Background(), plan.Phase{
			Index: 1,
			Tool:  "null_count",
			Args:  map[string]any{"table_name": "orders"},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(3))
		Expect(invoker.callsFor("null_count")).To(HaveLen(3))
	})

	It("replaces any column argument synonym with the canonical name", func() {
		o := &plan.ColumnIteration{Invoker: invoker, Sink: collector, State: state}

		_, err := o.Run(context.Background(), plan.Phase{
			Index: 1,
			Tool:  "null_count",
			Args:  map[string]any{"table_name": "orders", "col": "everything"},
		})
		Expect(err).NotTo(HaveOccurred())

		for _, call := range invoker.callsFor("null_count") {
			Expect(call.Args).NotTo(HaveKey("col"))
			Expect(call.Args).To(HaveKey("column_name"))
		}
	})

	It("accepts metadata wrapped in a columns field", func() {
		invoker.handler = func(tool string, args map[string]any) (*tools.Result, error) {
			if tool == "get_column_metadata" {
				return &tools.Result{
					Status: tools.StatusSuccess,
					Data:   map[string]any{"columns": columns},
				}, nil
			}
			return &tools.Result{Status: tools.StatusSuccess}, nil
		}
		o := &plan.ColumnIteration{Invoker: invoker, Sink: collector, State: state}

		results, err := o.Run(context.Background(), plan.Phase{
			Index: 1,
			Tool:  "null_count",
			Args:  map[string]any{"table_name": "orders"},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(3))
	})

	It("fails the phase when no table argument is present", func() {
		o := &plan.ColumnIteration{Invoker: invoker, Sink: collector, State: state}

		_, err := o.Run(context.Background(), plan.Phase{
			Index: 2,
			Tool:  "column_average",
			Args:  map[string]any{"column_name": "all"},
		})

		var hallErr *plan.HallucinationError
		Expect(errorsAs(err, &hallErr)).To(BeTrue())
		Expect(hallErr.Phase).To(Equal(2))
		Expect(invoker.callCount()).To(BeZero())
	})

	It("propagates a metadata fetch failure", func() {
		invoker.handler = func(tool string, args map[string]any) (*tools.Result, error) {
			return &tools.Result{Status: tools.StatusFailure, Error: "table not found"}, nil
		}
		o := &plan.ColumnIteration{Invoker: invoker, Sink: collector, State: state}

		_, err := o.Run(context.Background(), plan.Phase{
			Index: 1,
			Tool:  "column_average",
			Args:  map[string]any{"table_name": "ghost"},
		})
		Expect(err).To(MatchError(ContainSubstring("table not found")))
	})

	It("honors a custom metadata tool name", func() {
		invoker.handler = func(tool string, args map[string]any) (*tools.Result, error) {
			if tool == "describe_table" {
				return &tools.Result{Status: tools.StatusSuccess, Data: columns}, nil
			}
			return &tools.Result{Status: tools.StatusSuccess}, nil
		}
		o := &plan.ColumnIteration{Invoker: invoker, Sink: collector, State: state, MetadataTool: "describe_table"}

		_, err := o.Run(context.Background(), plan.Phase{
			Index: 1,
			Tool:  "null_count",
			Args:  map[string]any{"table_name": "orders"},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(invoker.callsFor("describe_table")).To(HaveLen(1))
	})
})
