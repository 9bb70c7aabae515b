package reconcile

import "testing"

func TestClassifyWordCount(t *testing.T) {
	tests := []struct {
		name       string
		raw        any
		wantBucket int
		wantClass  WordCountClass
	}{
		{"nil", nil, 0, ClassMissing},
		{"exact string 1000", "1000", 1000, ClassBucketed},
		{"exact string 1500", "1500", 1500, ClassBucketed},
		{"exact string 2500", "2500", 2500, ClassBucketed},
		{"int low edge", 500, 1000, ClassBucketed},
		{"int 1000", 1000, 1000, ClassBucketed},
		{"int 1001", 1001, 1500, ClassBucketed},
		{"int 1500", 1500, 1500, ClassBucketed},
		{"int 1501", 1501, 2500, ClassBucketed},
		{"int 2500", 2500, 2500, ClassBucketed},
		{"int below range", 499, 0, ClassOutOfRange},
		{"int above range", 2501, 0, ClassOutOfRange},
		{"int zero", 0, 0, ClassOutOfRange},
		{"negative", -100, 0, ClassOutOfRange},
		{"float64 truncates", 1200.9, 1500, ClassBucketed},
		{"int32", int32(800), 1000, ClassBucketed},
		{"int64", int64(2000), 2500, ClassBucketed},
		{"digit string", "750", 1000, ClassBucketed},
		{"digit string out of range", "99", 0, ClassOutOfRange},
		{"float string", "1200.5", 0, ClassUnparseable},
		{"word string", "lots", 0, ClassUnparseable},
		{"empty string", "", 0, ClassUnparseable},
		{"negative string", "-500", 0, ClassUnparseable},
		{"bool", true, 0, ClassUnparseable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, class := ClassifyWordCount(tt.raw)
			if bucket != tt.wantBucket || class != tt.wantClass {
				t.Errorf("ClassifyWordCount(%v) = (%d, %d), want (%d, %d)",
					tt.raw, bucket, class, tt.wantBucket, tt.wantClass)
			}
		})
	}
}

func TestParseDigits(t *testing.T) {
	tests := []struct {
		in     string
		want   int
		wantOK bool
	}{
		{"0", 0, true},
		{"1234", 1234, true},
		{"", 0, false},
		{"12a4", 0, false},
		{" 12", 0, false},
		{"12.5", 0, false},
	}

	for _, tt := range tests {
		got, ok := parseDigits(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("parseDigits(%q) = (%d, %v), want (%d, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}
