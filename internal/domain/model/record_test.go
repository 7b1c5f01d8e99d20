package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

// TestParseRecordType проверяет разбор route-параметра.
func TestParseRecordType(t *testing.T) {
	if typ, err := ParseRecordType("projects"); err != nil || typ != TypeProjects {
		t.Errorf("projects: %v %v", typ, err)
	}
	if typ, err := ParseRecordType("reports"); err != nil || typ != TypeReports {
		t.Errorf("reports: %v %v", typ, err)
	}
	for _, bad := range []string{"users", "Projects", ""} {
		if _, err := ParseRecordType(bad); err == nil {
			t.Errorf("ParseRecordType(%q): ожидалась ошибка", bad)
		}
	}
}

// TestRecord_JSONShape проверяет форму JSON: опциональные текстовые
// поля опускаются, files всегда присутствует.
func TestRecord_JSONShape(t *testing.T) {
	r := Record{
		ID:      1700000000000,
		TitleKu: "ناونیشان",
		Files:   []string{},
		Date:    time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)

	if !strings.Contains(s, `"files":[]`) {
		t.Errorf("files отсутствует или null: %s", s)
	}
	if strings.Contains(s, "title_en") {
		t.Errorf("пустое поле не опущено: %s", s)
	}
	if !strings.Contains(s, `"title_ku":"ناونیشان"`) {
		t.Errorf("title_ku потерян: %s", s)
	}
}

// TestDocument_Normalize проверяет замену nil-списков пустыми.
func TestDocument_Normalize(t *testing.T) {
	var d Document
	d.Projects = []Record{{ID: 1}}
	d.Normalize()

	if d.Reports == nil {
		t.Error("Reports остался nil")
	}
	if d.Projects[0].Files == nil {
		t.Error("Files записи остался nil")
	}
}

// TestDocument_MaxID проверяет поиск максимального ID по обоим спискам.
func TestDocument_MaxID(t *testing.T) {
	d := Document{
		Projects: []Record{{ID: 10}, {ID: 30}},
		Reports:  []Record{{ID: 20}},
	}
	if got := d.MaxID(); got != 30 {
		t.Errorf("MaxID = %d", got)
	}

	var empty Document
	if got := empty.MaxID(); got != 0 {
		t.Errorf("MaxID пустого документа = %d", got)
	}
}
