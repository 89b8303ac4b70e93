package mariadb

import "testing"

func TestDecodeEmbeddings(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    int
		wantErr bool
	}{
		{"single vector", `[0.1, 0.2, 0.3]`, 1, false},
		{"list of vectors", `[[0.1, 0.2], [0.3, 0.4]]`, 2, false},
		{"empty list", `[]`, 0, false},
		{"object", `{"a": 1}`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeEmbeddings([]byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeEmbeddings() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != tt.want {
				t.Errorf("expected %d vectors, got %d", tt.want, len(got))
			}
		})
	}
}

func TestNewPoolRequiresDSN(t *testing.T) {
	if _, err := NewPool(""); err == nil {
		t.Error("expected error for empty DSN")
	}
}
