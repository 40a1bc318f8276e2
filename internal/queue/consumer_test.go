package queue_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"

	"basegraph.app/faultline/internal/model"
	"basegraph.app/faultline/internal/queue"
)

func payload(n queue.Notification) string {
	b, err := json.Marshal(n)
	Expect(err).NotTo(HaveOccurred())
	return string(b)
}

var _ = Describe("ParseMessage", func() {
	var n queue.Notification

	BeforeEach(func() {
		n = queue.Notification{
			Scope:       "web",
			PatternID:   42,
			CommitSHA:   "abc123",
			FailedTests: []string{"Auth Test"},
			Analysis:    "AI analysis unavailable",
			Recommendations: []model.RecommendedTest{
				{TestName: "Auth Test", Reason: "re-run previously failed test", ConfidenceScore: 0.9},
			},
		}
	})

	It("decodes the payload and transport fields", func() {
		msg, err := queue.ParseMessage(redis.XMessage{
			ID: "1-0",
			Values: map[string]any{
				"payload":    payload(n),
				"attempt":    "2",
				"trace_id":   "0af7651916cd43dd8448eb211c80319c",
				"last_error": "gitlab 502",
			},
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(msg.ID).To(Equal("1-0"))
		Expect(msg.Attempt).To(Equal(2))
		Expect(msg.LastError).To(Equal("gitlab 502"))
		Expect(msg.Notification.PatternID).To(Equal(int64(42)))
		Expect(msg.Notification.TraceID).To(Equal("0af7651916cd43dd8448eb211c80319c"))
		Expect(msg.Notification.Recommendations).To(HaveLen(1))
	})

	It("defaults the attempt to one", func() {
		msg, err := queue.ParseMessage(redis.XMessage{ID: "1-0", Values: map[string]any{"payload": payload(n)}})

		Expect(err).NotTo(HaveOccurred())
		Expect(msg.Attempt).To(Equal(1))
	})

	DescribeTable("rejects malformed entries",
		func(mutate func(values map[string]any), want string) {
			values := map[string]any{"payload": payload(n)}
			mutate(values)

			_, err := queue.ParseMessage(redis.XMessage{ID: "1-0", Values: values})
			Expect(err).To(MatchError(ContainSubstring(want)))
		},
		Entry("missing payload", func(v map[string]any) { delete(v, "payload") }, "missing payload"),
		Entry("payload not json", func(v map[string]any) { v["payload"] = "{" }, "decoding payload"),
		Entry("bad attempt", func(v map[string]any) { v["attempt"] = "x" }, "parsing attempt"),
		Entry("missing scope", func(v map[string]any) {
			bad := n
			bad.Scope = ""
			v["payload"] = payload(bad)
		}, "missing scope"),
		Entry("missing pattern id", func(v map[string]any) {
			bad := n
			bad.PatternID = 0
			v["payload"] = payload(bad)
		}, "missing pattern_id"),
	)
})
