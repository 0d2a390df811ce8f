package linker

import (
	"context"
	"testing"
)

func TestZZDebugHealSecondPass(t *testing.T) {
	lk, store, db := linkerTestEnv(t)
	seed(t, store, db, map[string][]byte{
		"people/arne.md":   personRecord("id: p-arne", "name: Arne Berg", "father_id: p-gustav"),
		"people/gustav.md": personRecord("id: p-gustav", "name: Gustav Berg", "sex: M"),
	})

	res1, err := lk.Heal(context.Background(), HealRequest{})
	if err != nil {
		t.Fatal(err)
	}
	t.Logf("pass1 = %+v", res1.Result)

	for _, path := range []string{"people/arne.md", "people/gustav.md"} {
		_, raw := readBack(t, store, path)
		t.Logf("disk %s:\n%s", path, raw)
		row, err := db.GetPerson(path)
		if err != nil {
			t.Fatal(err)
		}
		t.Logf("index %s: id=%q sex=%q father=%+v parents=%+v children=%+v",
			path, row.ID, row.Sex, row.Father, row.Parents, row.Children)
	}

	res2, err := lk.Heal(context.Background(), HealRequest{})
	if err != nil {
		t.Fatal(err)
	}
	t.Logf("pass2 = %+v", res2.Result)
}
