package extractor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Meltveit/qrydex/internal/extractor"
)

func TestExtractEmails_FiltersDenied(t *testing.T) {
	t.Parallel()

	text := `Skriv til Post@FjordBygg.no eller noreply@fjordbygg.no.
	logo@2x.png user@example.com abc@sentry.io x@o123.ingest.sentry.io tmp@mailinator.com
	post@fjordbygg.no salg@fjordbygg.no.`

	got := extractor.ExtractEmails(text)
	assert.Equal(t, []string{"post@fjordbygg.no", "salg@fjordbygg.no"}, got)
}

func TestRankEmails_TiersThenOwnDomain(t *testing.T) {
	t.Parallel()

	emails := []string{
		"hello@fjordbygg.no",
		"support@fjordbygg.no",
		"kontakt@gmail.com",
		"daglig.leder@fjordbygg.no",
		"faktura@regnskap.no",
		"info@fjordbygg.no",
		"ola@fjordbygg.no",
	}

	got := extractor.RankEmails(emails, "fjordbygg.no")
	assert.Equal(t, []string{
		"daglig.leder@fjordbygg.no",
		"kontakt@gmail.com",
		"support@fjordbygg.no",
		"faktura@regnskap.no",
		"hello@fjordbygg.no",
	}, got)
}

func TestRankEmails_Empty(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{}, extractor.RankEmails(nil, ""))
}

func TestExtractPhones(t *testing.T) {
	t.Parallel()

	markup := []string{`<a href="tel:+47%2022%2033%2044%2055">Ring</a><a href="tel:123">kort</a>`}
	text := "Tlf: 22 33 44 55. Mobil 0047 912 34 567. Fax: +45 33 12 34 56. Ordre 2024-123"

	got := extractor.ExtractPhones(text, markup)
	assert.Equal(t, []string{"+4722334455", "+4791234567", "+4533123456"}, got)
}

func TestExtractPhones_Cap(t *testing.T) {
	t.Parallel()

	text := "+47 11111111 +47 22222222 +47 33333333 +47 44444444 +47 55555555 +47 66666666"
	assert.Len(t, extractor.ExtractPhones(text, nil), 5)
}

func TestNormalizePhone(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"+47 22 33 44 55", "+4722334455", true},
		{"0046 8 123 456 78", "+46812345678", true},
		{"123-4567", "", false},
		{"22334455", "22334455", true},
		{"+1 234 567 890 123 456 7", "", false},
	}
	for _, tt := range tests {
		got, ok := extractor.NormalizePhone(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestIsProfessionalEmail(t *testing.T) {
	t.Parallel()

	assert.True(t, extractor.IsProfessionalEmail("post@fjordbygg.no", "fjordbygg.no"))
	assert.True(t, extractor.IsProfessionalEmail("post@mail.fjordbygg.no", "fjordbygg.no"))
	assert.False(t, extractor.IsProfessionalEmail("fjordbygg@gmail.com", "fjordbygg.no"))
	assert.False(t, extractor.IsProfessionalEmail("post@annet.no", "fjordbygg.no"))
	assert.True(t, extractor.IsProfessionalEmail("post@annet.no", ""))
	assert.False(t, extractor.IsProfessionalEmail("not-an-email", ""))
}

func TestRegistrableDomain(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "example.co.uk", extractor.RegistrableDomain("www.shop.Example.co.uk"))
	assert.Equal(t, "fjordbygg.no", extractor.RegistrableDomain("www.fjordbygg.no."))
	assert.Equal(t, "127.0.0.1", extractor.RegistrableDomain("127.0.0.1"))
}
