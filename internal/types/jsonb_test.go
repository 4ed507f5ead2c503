package types

import (
	"testing"
)

func TestUpsellListValue_NilIsEmptyArray(t *testing.T) {
	v, err := UpsellList(nil).Value()
	if err != nil {
		t.Fatal(err)
	}
	if string(v.([]byte)) != "[]" {
		t.Errorf("Value() = %s, want []", v)
	}
}

func TestUpsellListScan(t *testing.T) {
	var l UpsellList
	raw := `[{"code":"1","title":"Landing page extra","price":97,"recurrence":"onetime"}]`
	if err := l.Scan([]byte(raw)); err != nil {
		t.Fatal(err)
	}
	if len(l) != 1 || l[0].Code != "1" || l[0].Price != 97 || l[0].Recurrence != RecurrenceOneTime {
		t.Errorf("Scan() = %+v", l)
	}

	if err := l.Scan(nil); err != nil || l != nil {
		t.Errorf("Scan(nil) = %v, %v", l, err)
	}
	if err := l.Scan(42); err == nil {
		t.Error("Scan(int) should fail")
	}
}

func TestBenefitListScanString(t *testing.T) {
	var b BenefitList
	if err := b.Scan(`["1 campanha ativa","Relatórios mensais"]`); err != nil {
		t.Fatal(err)
	}
	if len(b) != 2 || b[1] != "Relatórios mensais" {
		t.Errorf("Scan() = %v", b)
	}
}
