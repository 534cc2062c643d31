package format

import (
	"strings"
	"testing"

	"github.com/romnatson3/pharmacy/catalog"
	"github.com/romnatson3/pharmacy/core/logger"
)

func TestMedicationDisplayName(t *testing.T) {
	cases := []struct {
		name     string
		dosage   int64
		units    string
		quantity int64
		form     string
		want     string
	}{
		{"Ібупрофен", 200, "мг", 50, "табл.", "Ібупрофен, 200 мг, 50 табл."},
		{"Ібупрофен", 200, "мг", 0, "", "Ібупрофен, 200 мг"},
		{"Ібупрофен", 0, "", 50, "табл.", "Ібупрофен, 50 табл."},
		{"Ібупрофен", 0, "", 0, "", "Ібупрофен"},
	}
	for _, c := range cases {
		got := MedicationDisplayName(c.name, c.dosage, c.units, c.quantity, c.form)
		if got != c.want {
			t.Fatalf("display name = %q, want %q", got, c.want)
		}
	}
}

func TestChoiceIDRoundTrip(t *testing.T) {
	for _, id := range []int64{1, 2, 7, 42, 1 << 40} {
		label := "Парацетамол, 500 мг" + EncodeChoiceID(id)
		got, visible, ok := DecodeChoiceID(label)
		if !ok {
			t.Fatalf("marker for id %d not decoded", id)
		}
		if got != id {
			t.Fatalf("decoded id = %d, want %d", got, id)
		}
		if visible != "Парацетамол, 500 мг" {
			t.Fatalf("visible text = %q", visible)
		}
	}
}

func TestChoiceIDMarkerIsInvisible(t *testing.T) {
	marker := EncodeChoiceID(123)
	if logger.Sanitize(marker) != "" {
		t.Fatalf("marker contains visible runes: %q", marker)
	}
}

func TestDecodeChoiceIDPlainText(t *testing.T) {
	id, visible, ok := DecodeChoiceID("аспірин")
	if ok || id != 0 {
		t.Fatalf("plain text decoded as id %d", id)
	}
	if visible != "аспірин" {
		t.Fatalf("visible text = %q", visible)
	}
}

func TestDecodeChoiceIDDamagedMarker(t *testing.T) {
	if _, _, ok := DecodeChoiceID("назва\u2063"); ok {
		t.Fatal("empty marker accepted")
	}
	if _, _, ok := DecodeChoiceID("назва\u2063\u200bx"); ok {
		t.Fatal("marker with foreign rune accepted")
	}
}

func districtList(n int) []catalog.District {
	out := make([]catalog.District, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, catalog.District{ID: int64(i + 1), Name: "Район"})
	}
	return out
}

func TestDistrictKeyboardEvenCount(t *testing.T) {
	markup := DistrictKeyboard(districtList(4))
	rows := markup.InlineKeyboard
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if len(rows[0]) != 2 || len(rows[1]) != 3 {
		t.Fatalf("row sizes = %d,%d, want 2,3", len(rows[0]), len(rows[1]))
	}
	last := rows[1][2]
	if !strings.Contains(last.Data, catalog.AllDistricts) {
		t.Fatalf("sentinel payload = %q", last.Data)
	}
}

func TestDistrictKeyboardOddCount(t *testing.T) {
	markup := DistrictKeyboard(districtList(5))
	rows := markup.InlineKeyboard
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if len(rows[2]) != 2 {
		t.Fatalf("last row size = %d, want 2", len(rows[2]))
	}
}

func TestDistrictKeyboardEmpty(t *testing.T) {
	markup := DistrictKeyboard(nil)
	rows := markup.InlineKeyboard
	if len(rows) != 1 || len(rows[0]) != 1 {
		t.Fatalf("empty list should yield a lone sentinel row, got %v", rows)
	}
}

func TestMedicationChoiceKeyboard(t *testing.T) {
	meds := []catalog.Medication{
		{ID: 10, Name: "Анальгін", Dosage: 500, Units: "мг"},
		{ID: 11, Name: "Анальгін", Quantity: 10, Form: "табл."},
	}
	markup := MedicationChoiceKeyboard(meds)
	if len(markup.ReplyKeyboard) != 2 {
		t.Fatalf("rows = %d, want 2", len(markup.ReplyKeyboard))
	}
	for i, row := range markup.ReplyKeyboard {
		if len(row) != 1 {
			t.Fatalf("row %d has %d buttons, want 1", i, len(row))
		}
		id, _, ok := DecodeChoiceID(row[0].Text)
		if !ok || id != meds[i].ID {
			t.Fatalf("row %d marker decoded to %d, ok=%v", i, id, ok)
		}
	}
}

func TestStockListText(t *testing.T) {
	stocks := []catalog.StockDetail{
		{
			MedName: "Німесил", Dosage: 100, Units: "мг", Quantity: 9, Form: "пак.",
			Price: 345.5, ChainName: "Аптека 1", Address: "вул. Шевченка, 1",
			Phones: []string{"+380441112233", "+380441112234"},
		},
		{
			MedName: "Німесил", Price: 350, ChainName: "Аптека 2", Address: "вул. Франка, 7",
		},
	}
	got := StockListText(stocks)
	want := "<b>Німесил, 100 мг, 9 пак. - 345.50 грн.</b>\n" +
		"Аптека 1 - вул. Шевченка, 1\n" +
		"+380441112233\n+380441112234\n\n" +
		"<b>Німесил - 350.00 грн.</b>\n" +
		"Аптека 2 - вул. Франка, 7"
	if got != want {
		t.Fatalf("stock list text:\n%q\nwant:\n%q", got, want)
	}
}

func TestChainOfferText(t *testing.T) {
	offer := catalog.ChainOffer{
		ChainID: 3, ChainName: "Бажаємо здоров'я",
		MedName: "Цитрамон", Quantity: 6, Form: "табл.", Price: 18.9,
	}
	got := ChainOfferText(offer)
	want := "<b>Цитрамон, 6 табл. - 18.90 грн.</b>\nБажаємо здоров'я"
	if got != want {
		t.Fatalf("offer text = %q, want %q", got, want)
	}
}
