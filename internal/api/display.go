package api

// Frontend asset mappings. Unknown names fall back to the default asset.

var teamLogos = map[string]string{
	"Vitality": "/teams/vitality.webp",
	"Spirit":   "/teams/spirit.webp",
	"ENCE":     "/teams/ence.svg",
	"Heroic":   "/teams/heroic.webp",
	"NaVi":     "/teams/NatusVincere.svg",
	"FaZe":     "/teams/FaZeClan.webp",
	"G2":       "/teams/g2esports.webp",
	"Tyloo":    "/teams/tyloo.svg",
}

var collectibleImages = map[string]string{
	"AWP | Dragon Lore (Factory New)":                                       "/skins/Dragon.webp",
	"★ Butterfly Knife | Crimson Web (Factory New)":                         "/skins/Butterfly.webp",
	"★ Karambit | Gamma Doppler (Factory New)":                              "/skins/Karambit.webp",
	"★ Sport Gloves | Nocts (Field-Tested)":                                 "/skins/SportGloves.webp",
	"StatTrak™ AK-47 | Vulcan (Well-Worn)":                                  "/skins/AK-47.webp",
	"M4A4 | Hellish (Minimal Wear)":                                         "/skins/Hellish.webp",
	"Souvenir Galil AR | CAUTION! (Factory New)":                            "/skins/Galil.webp",
	"Crasswater The Forgotten | Guerrilla Warfare":                          "/skins/GuerrillaWarfare.webp",
	"StatTrak™ Music Kit | TWERL and Ekko & Sidetrack, Under Bright Lights": "/skins/MusicKit.webp",
	"MAC-10 | Tatter (Well-Worn)":                                           "/skins/MAC-10.webp",
	"Tec-9 | Groundwater (Battle-Scarred)":                                  "/skins/Tec-9.webp",
}

func logoURL(teamName string) string {
	if url, ok := teamLogos[teamName]; ok {
		return url
	}
	return "/teams/default.svg"
}

func collectibleImage(name string) string {
	if url, ok := collectibleImages[name]; ok {
		return url
	}
	return "/skins/default.webp"
}
