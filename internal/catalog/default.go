package catalog

// Default returns the built-in station table used when no catalog file is
// configured.
func Default() *Catalog {
	return New(map[string][]Station{
		"Classic Rock": {
			{Name: "Classic Rock Florida", URI: "http://stream.abacast.net/playlist/classic-rock-florida-hd-48k.m3u"},
			{Name: "Absolute Classic Rock", URI: "http://icecast.timlradio.co.uk/ac-high.mp3"},
			{Name: "Rock Antenne", URI: "http://mp3.webradio.antenne.de:80/rockantenne/stream"},
		},
		"80s Hits": {
			{Name: "Absolute 80s", URI: "http://icecast.timlradio.co.uk/a8-high.mp3"},
			{Name: "80s80s", URI: "http://80s80s.hoerradar.de/80s80s-mp3-128"},
			{Name: "Awesome 80s", URI: "https://streams.abidingradio.org/awesome80s"},
		},
		"Jazz": {
			{Name: "Jazz24", URI: "https://jazz24.org/streams/high.m3u"},
			{Name: "TSF Jazz", URI: "http://tsfjazz.ice.infomaniak.ch/tsfjazz-high.mp3"},
			{Name: "Swiss Jazz", URI: "http://stream.srg-ssr.ch/m/rsj/mp3_128"},
		},
		"Electronic / Chill": {
			{Name: "SomaFM: Groove Salad", URI: "http://ice.somafm.com/groovesalad-128-mp3"},
			{Name: "SomaFM: Drone Zone", URI: "http://ice.somafm.com/dronezone-128-mp3"},
			{Name: "Radio Paradise (Mellow)", URI: "http://stream.radioparadise.com/mellow-flac"},
		},
		"Classical": {
			{Name: "Linn Classical", URI: "http://radio.linn.co.uk:8004/autodj"},
			{Name: "Venice Classic Radio", URI: "http://174.36.1.135:8006/stream"},
			{Name: "Radio Swiss Classic", URI: "http://stream.srg-ssr.ch/m/rsc_de/mp3_128"},
		},
	})
}
