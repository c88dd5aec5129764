package export

import (
	"testing"
	"time"
)

func TestBuildFilename(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		photo  Photo
		album  string
		folder string
		want   string
	}{
		{
			name:  "album only",
			photo: Photo{FileName: "IMG_0001.JPG", CreatedAt: created},
			album: "Our Love Story",
			want:  "OurLoveStory_2024-03-01.jpg",
		},
		{
			name:   "album and folder",
			photo:  Photo{FileName: "beach.png", CreatedAt: created},
			album:  "Summer '24",
			folder: "Day #1",
			want:   "Summer24_Day1_2024-03-01.png",
		},
		{
			name:  "missing extension falls back to jpg",
			photo: Photo{FileName: "scan", CreatedAt: created},
			album: "Trip",
			want:  "Trip_2024-03-01.jpg",
		},
		{
			name:  "trailing dot falls back to jpg",
			photo: Photo{FileName: "scan.", CreatedAt: created},
			album: "Trip",
			want:  "Trip_2024-03-01.jpg",
		},
		{
			name:  "last dot wins",
			photo: Photo{FileName: "archive.tar.webp", CreatedAt: created},
			album: "Trip",
			want:  "Trip_2024-03-01.webp",
		},
		{
			name: "date is taken in UTC",
			photo: Photo{
				FileName:  "a.jpg",
				CreatedAt: time.Date(2024, 3, 1, 23, 30, 0, 0, time.FixedZone("UTC-2", -2*60*60)),
			},
			album: "Trip",
			want:  "Trip_2024-03-02.jpg",
		},
		{
			name:  "non-ascii letters are dropped",
			photo: Photo{FileName: "a.jpg", CreatedAt: created},
			album: "Café Olé",
			want:  "CafOl_2024-03-01.jpg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildFilename(tt.photo, tt.album, tt.folder)
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
			if again := BuildFilename(tt.photo, tt.album, tt.folder); again != got {
				t.Errorf("not deterministic: %q then %q", got, again)
			}
		})
	}
}

func TestCollisionName(t *testing.T) {
	tests := []struct {
		name  string
		index int
		want  string
	}{
		{"Trip_2024-03-01.jpg", 2, "Trip_2024-03-01_2.jpg"},
		{"Trip_2024-03-01.png", 10, "Trip_2024-03-01_10.png"},
		{"noext", 3, "noext_3"},
	}

	for _, tt := range tests {
		if got := CollisionName(tt.name, tt.index); got != tt.want {
			t.Errorf("CollisionName(%q, %d): expected %q, got %q", tt.name, tt.index, tt.want, got)
		}
	}
}

func TestArchiveName(t *testing.T) {
	tests := []struct {
		album string
		want  string
	}{
		{"Trip!", "Trip.zip"},
		{"Our Love Story", "OurLoveStory.zip"},
		{"!!!", "album.zip"},
		{"", "album.zip"},
	}

	for _, tt := range tests {
		if got := ArchiveName(tt.album); got != tt.want {
			t.Errorf("ArchiveName(%q): expected %q, got %q", tt.album, tt.want, got)
		}
	}
}
