package fingerprint_test

import (
	"context"
	"math"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/faultline/internal/fingerprint"
	"basegraph.app/faultline/internal/model"
)

var _ = Describe("Generate", func() {
	texts := []string{
		"a",
		"Auth Test 401",
		"TypeError: Cannot read properties of undefined (reading 'id')\n    at handler (src/api/users.ts:42:13)",
		"résumé 🚀 ünïcode",
		strings.Repeat("panic: runtime error: index out of range [3] with length 3\n", 200),
	}

	DescribeTable("is deterministic",
		func(text string) {
			a, err := fingerprint.Generate(text, model.DefaultDimensions)
			Expect(err).NotTo(HaveOccurred())
			b, err := fingerprint.Generate(text, model.DefaultDimensions)
			Expect(err).NotTo(HaveOccurred())
			Expect(a).To(Equal(b))
		},
		Entry("single char", texts[0]),
		Entry("short message", texts[1]),
		Entry("stack trace", texts[2]),
		Entry("non-ascii", texts[3]),
		Entry("long log", texts[4]),
	)

	DescribeTable("produces unit vectors of the configured dimension",
		func(text string) {
			fp, err := fingerprint.Generate(text, model.DefaultDimensions)
			Expect(err).NotTo(HaveOccurred())
			Expect(fp).To(HaveLen(1536))
			Expect(fingerprint.Norm(fp)).To(BeNumerically("~", 1.0, 1e-6))
		},
		Entry("single char", texts[0]),
		Entry("short message", texts[1]),
		Entry("stack trace", texts[2]),
		Entry("non-ascii", texts[3]),
		Entry("long log", texts[4]),
	)

	It("places each code point at (c*i) mod D", func() {
		fp, err := fingerprint.Generate("ab", model.DefaultDimensions)
		Expect(err).NotTo(HaveOccurred())

		a := 97.0 / 255
		b := 98.0 / 255
		norm := math.Sqrt(a*a + b*b)
		Expect(fp[0]).To(BeNumerically("~", a/norm, 1e-12))
		Expect(fp[98]).To(BeNumerically("~", b/norm, 1e-12))

		nonZero := 0
		for _, x := range fp {
			if x != 0 {
				nonZero++
			}
		}
		Expect(nonZero).To(Equal(2))
	})

	It("wraps accumulated slots modulo 1", func() {
		// 'ÿ' is 255, so 255/255 mod 1 contributes nothing; only 'a' at slot (97*1) mod D remains.
		fp, err := fingerprint.Generate("ÿa", model.DefaultDimensions)
		Expect(err).NotTo(HaveOccurred())
		Expect(fp[97]).To(BeNumerically("~", 1.0, 1e-12))
	})

	It("rejects empty text", func() {
		_, err := fingerprint.Generate("", model.DefaultDimensions)
		Expect(err).To(MatchError(fingerprint.ErrEmptyInput))
	})

	It("rejects text whose vector has zero norm", func() {
		_, err := fingerprint.Generate("ÿ", model.DefaultDimensions)
		Expect(err).To(MatchError(fingerprint.ErrEmptyInput))
	})

	It("honours a custom dimension", func() {
		fp, err := fingerprint.Generate("hello world", 8)
		Expect(err).NotTo(HaveOccurred())
		Expect(fp).To(HaveLen(8))
	})
})

var _ = Describe("CosineSimilarity", func() {
	It("is 1 for identical fingerprints", func() {
		fp, err := fingerprint.Generate("Auth Test 401", model.DefaultDimensions)
		Expect(err).NotTo(HaveOccurred())
		Expect(fingerprint.CosineSimilarity(fp, fp)).To(BeNumerically("~", 1.0, 1e-9))
	})

	It("is symmetric", func() {
		a, _ := fingerprint.Generate("timeout waiting for selector", model.DefaultDimensions)
		b, _ := fingerprint.Generate("timeout waiting for element", model.DefaultDimensions)
		Expect(fingerprint.CosineSimilarity(a, b)).To(BeNumerically("~", fingerprint.CosineSimilarity(b, a), 1e-12))
	})

	It("is 0 for mismatched lengths", func() {
		Expect(fingerprint.CosineSimilarity(model.Fingerprint{1, 0}, model.Fingerprint{1, 0, 0})).To(Equal(0.0))
	})

	It("is 0 for a zero vector", func() {
		Expect(fingerprint.CosineSimilarity(model.Fingerprint{0, 0}, model.Fingerprint{1, 0})).To(Equal(0.0))
	})
})

var _ = Describe("New", func() {
	It("defaults to the hash embedder", func() {
		e, err := fingerprint.New(fingerprint.Config{})
		Expect(err).NotTo(HaveOccurred())
		Expect(e.Dimensions()).To(Equal(model.DefaultDimensions))

		fp, err := e.Embed(context.Background(), "Auth Test")
		Expect(err).NotTo(HaveOccurred())
		Expect(fp).To(HaveLen(model.DefaultDimensions))
	})

	It("requires an API key for openai", func() {
		_, err := fingerprint.New(fingerprint.Config{Provider: fingerprint.ProviderOpenAI})
		Expect(err).To(MatchError(ContainSubstring("API key is required")))
	})

	It("rejects unknown providers", func() {
		_, err := fingerprint.New(fingerprint.Config{Provider: "word2vec"})
		Expect(err).To(MatchError(ContainSubstring("unsupported embedding provider")))
	})
})
