// Package generation turns client generation requests into Replicate predictions
// and normalizes prediction status for polling clients.
package generation

import "sort"

// ModelKey names one of the supported image models.
type ModelKey string

const (
	ModelFluxImg2Img ModelKey = "flux_img2img"
	ModelSDXL        ModelKey = "sdxl"
	ModelNanoBanana  ModelKey = "nano_banana"
	ModelGPTImage    ModelKey = "gpt_image_1_5"
)

// DefaultModel is used when the request names no model or an unknown one.
const DefaultModel = ModelFluxImg2Img

// Family groups models that share an input schema.
type Family int

const (
	FamilyDiffusion Family = iota
	FamilyNanoBanana
	FamilyGPTImage
)

// Profile is the static description of a model on Replicate.
type Profile struct {
	Key                 ModelKey
	Version             string
	Family              Family
	DefaultSteps        int    // diffusion family only
	DefaultOutputFormat string // non-diffusion families only
}

var profiles = map[ModelKey]Profile{
	ModelFluxImg2Img: {
		Key:          ModelFluxImg2Img,
		Version:      "59d24cdf87eb2bf20757d7072c5718750d76ecdcc87851e0e2ca5bac92cef21d",
		Family:       FamilyDiffusion,
		DefaultSteps: 28,
	},
	ModelSDXL: {
		Key:          ModelSDXL,
		Version:      "392573f9ac8c7f6153001c5ef00fc9fd6611ad361e3ead07160116747895d7ad",
		Family:       FamilyDiffusion,
		DefaultSteps: 25,
	},
	ModelNanoBanana: {
		Key:                 ModelNanoBanana,
		Version:             "2784c5d54c07d79b0a2a5385477038719ad37cb0745e61bbddf2fc236d196a6b",
		Family:              FamilyNanoBanana,
		DefaultOutputFormat: "jpg",
	},
	ModelGPTImage: {
		Key:                 ModelGPTImage,
		Version:             "37290ca08cd60a404e2c1b8266d214e4769f756926c2e1179c7a3a0d12ae101b",
		Family:              FamilyGPTImage,
		DefaultOutputFormat: "webp",
	},
}

// ParseModelKey maps a client-supplied model name to a known key.
// Unknown or empty names fall back to DefaultModel.
func ParseModelKey(s string) ModelKey {
	k := ModelKey(s)
	if _, ok := profiles[k]; ok {
		return k
	}
	return DefaultModel
}

// Profile returns the profile for k, or the default model's profile when k is unknown.
func (k ModelKey) Profile() Profile {
	if p, ok := profiles[k]; ok {
		return p
	}
	return profiles[DefaultModel]
}

// Profiles lists every known model sorted by key.
func Profiles() []Profile {
	out := make([]Profile, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
