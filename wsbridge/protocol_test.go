package wsbridge_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rgeissen/uderia-sub003/wsbridge"
)

var _ = Describe("Envelope", func() {
	It("builds a request with a fresh id and timestamp", func() {
		env, err := wsbridge.NewRequest(wsbridge.TypeRegister, &wsbridge.RegisterPayload{
			InstanceName: "runner-1",
			Version:      "1.0.0",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(env.Type).To(Equal(wsbridge.TypeRegister))
		Expect(env.RequestID).NotTo(BeEmpty())
		Expect(env.Timestamp).NotTo(BeZero())
	})

	It("echoes the request id on responses", func() {
		env, err := wsbridge.NewResponse("req-7", wsbridge.TypeTurnResult, &wsbridge.TurnResultPayload{
			SessionID: "s1",
			Response:  "done",
			Success:   true,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(env.RequestID).To(Equal("req-7"))
	})

	It("leaves events without a request id", func() {
		env, err := wsbridge.NewEvent(wsbridge.TypeExecutionEvent, &wsbridge.ExecutionEventPayload{
			EventID:   "ev-1",
			EventType: "llm_step",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(env.RequestID).To(BeEmpty())
	})

	It("round-trips payloads through the wire format", func() {
		original, err := wsbridge.NewRequest(wsbridge.TypeTurnRequest, &wsbridge.TurnRequestPayload{
			SessionID:  "s1",
			Query:      "how are sales?",
			ProfileTag: "coordinator",
		})
		Expect(err).NotTo(HaveOccurred())

		wire, err := json.Marshal(original)
		Expect(err).NotTo(HaveOccurred())

		var decoded wsbridge.Envelope
		Expect(json.Unmarshal(wire, &decoded)).To(Succeed())
		Expect(decoded.Type).To(Equal(wsbridge.TypeTurnRequest))
		Expect(decoded.RequestID).To(Equal(original.RequestID))

		var payload wsbridge.TurnRequestPayload
		Expect(wsbridge.DecodePayload(&decoded, &payload)).To(Succeed())
		Expect(payload.SessionID).To(Equal("s1"))
		Expect(payload.Query).To(Equal("how are sales?"))
		Expect(payload.ProfileTag).To(Equal("coordinator"))
	})

	It("wraps errors in a typed payload", func() {
		env, err := wsbridge.NewError("req-9", "invalid_request", "missing sessionId")
		Expect(err).NotTo(HaveOccurred())
		Expect(env.Type).To(Equal(wsbridge.TypeError))
		Expect(env.RequestID).To(Equal("req-9"))

		var payload wsbridge.ErrorPayload
		Expect(wsbridge.DecodePayload(env, &payload)).To(Succeed())
		Expect(payload.Code).To(Equal("invalid_request"))
		Expect(payload.Message).To(Equal("missing sessionId"))
	})

	It("rejects decoding an empty payload", func() {
		env, err := wsbridge.NewEvent(wsbridge.TypeHeartbeat, nil)
		Expect(err).NotTo(HaveOccurred())

		var payload wsbridge.ErrorPayload
		Expect(wsbridge.DecodePayload(env, &payload)).To(MatchError(ContainSubstring("no payload")))
	})
})
