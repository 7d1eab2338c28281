package container

// Channel/loudspeaker configuration tables. DSDIFF's LSCO chunk and DSF's
// fmt chunk channel_type field encode an overlapping but distinct mapping
// from "number of channels" to loudspeaker configuration; both tables are
// kept separate rather than collapsed into one.

// UnknownLoudspeakerConfig is returned in place of a resolved loudspeaker
// config when channelCount has no entry in the relevant table.
const UnknownLoudspeakerConfig = 65535

// dsdiffLoudspeakerConfig maps DSDIFF CHNL channel_count to LSCO-style
// loudspeaker_config.
var dsdiffLoudspeakerConfig = map[int]int{
	1: 5, // mono
	2: 0, // stereo
	3: 6, // 2ch + center
	4: 1, // quad
	5: 3, // 5ch
	6: 4, // 5.1ch
}

// dsfLoudspeakerConfig maps the DSF fmt chunk's channel_type field to the
// same loudspeaker_config space. The table overlaps dsdiffLoudspeakerConfig
// for channel_type 1-4 but diverges at 5 and above because DSF's
// channel_type additionally distinguishes "4 channels" from "5 channels"
// where DSDIFF's channel_count does not carry that distinction directly.
var dsfLoudspeakerConfig = map[int]int{
	1: 5,
	2: 0,
	3: 6,
	4: 1,
	5: 2,
	6: 3,
	7: 4,
}

func resolveDSDIFFLoudspeakerConfig(channelCount int) int {
	if v, ok := dsdiffLoudspeakerConfig[channelCount]; ok {
		return v
	}
	return UnknownLoudspeakerConfig
}

func resolveDSFLoudspeakerConfig(channelType int) int {
	if v, ok := dsfLoudspeakerConfig[channelType]; ok {
		return v
	}
	return UnknownLoudspeakerConfig
}

// loudspeakerConfigMono is the canonical "this area/track is mono" value;
// the full mono-handling rule is documented in container.go.
const loudspeakerConfigMono = 5
