// Package demo is the demonstration plugin package: a handful of map
// interfaces computing placeholder array-design formulas, plus raw and
// file input interfaces for feeding the pipeline. It exists to exercise
// the interface contract end to end; the formulas carry no engineering
// meaning.
package demo

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/arrayforge/arrayforge/pkg/catalog"
	"github.com/arrayforge/arrayforge/pkg/plugins"
)

// Interface types the demo hubs sequence.
const (
	ModuleType = "modules"
	ThemeType  = "themes"
)

// Catalog identifiers declared by the demo package.
const (
	VarSystemType     = "device.system_type"
	VarPowerRating    = "device.power_rating"
	VarSiteArea       = "site.area"
	VarCapacityFactor = "site.capacity_factor"
	VarDeviceCount    = "farm.device_count"
	VarLayoutSpacing  = "farm.layout_spacing"
	VarAnnualEnergy   = "farm.annual_energy"
	VarImpactScore    = "environment.impact_score"
)

// CatalogEntries returns the metadata for every demo variable.
func CatalogEntries() []*catalog.Metadata {
	return []*catalog.Metadata{
		{
			Identifier:  VarSystemType,
			Structure:   "SimpleData",
			Title:       "Device System Type",
			Types:       []string{"string"},
			ValidValues: []string{"wave", "tidal"},
			Group:       "device",
		},
		{
			Identifier: VarPowerRating,
			Structure:  "SimpleData",
			Title:      "Device Rated Power",
			Units:      []string{"MW"},
			Group:      "device",
		},
		{
			Identifier: VarSiteArea,
			Structure:  "SimpleData",
			Title:      "Lease Area",
			Units:      []string{"m^2"},
			Group:      "site",
		},
		{
			Identifier: VarCapacityFactor,
			Structure:  "SimpleData",
			Title:      "Site Capacity Factor",
			Group:      "site",
		},
		{
			Identifier: VarDeviceCount,
			Structure:  "SimpleData",
			Title:      "Number of Devices",
			Group:      "farm",
		},
		{
			Identifier: VarLayoutSpacing,
			Structure:  "SimpleData",
			Title:      "Device Spacing",
			Units:      []string{"m"},
			Group:      "farm",
		},
		{
			Identifier: VarAnnualEnergy,
			Structure:  "SimpleData",
			Title:      "Annual Energy Yield",
			Units:      []string{"MWh"},
			Group:      "farm",
		},
		{
			Identifier: VarImpactScore,
			Structure:  "SimpleData",
			Title:      "Environmental Impact Score",
			Group:      "environment",
		},
	}
}

// PopulateCatalog adds every demo variable to the catalog.
func PopulateCatalog(cat *catalog.DataCatalog) error {
	for _, meta := range CatalogEntries() {
		if err := cat.AddMetadata(meta); err != nil {
			return err
		}
	}

	return nil
}

// ModuleManifest lists the demo module interfaces, weighted into their
// execution order.
func ModuleManifest() plugins.Manifest {
	return plugins.Manifest{
		Package: "demo",
		Interfaces: []plugins.Registration{
			{
				ClassName: "DeviceSpacingInterface",
				Kind:      plugins.KindMap,
				New:       newDeviceSpacing,
			},
			{
				ClassName: "EnergyYieldInterface",
				Kind:      plugins.KindMap,
				New:       newEnergyYield,
			},
		},
	}
}

// ThemeManifest lists the demo theme interfaces. Themes assess a
// completed design and may run in any order.
func ThemeManifest() plugins.Manifest {
	return plugins.Manifest{
		Package: "demo",
		Interfaces: []plugins.Registration{
			{
				ClassName: "EnvironmentalImpactInterface",
				Kind:      plugins.KindMap,
				New:       newEnvironmentalImpact,
			},
		},
	}
}

// FileManifest lists the demo file input interfaces.
func FileManifest() plugins.Manifest {
	return plugins.Manifest{
		Package: "demo",
		Interfaces: []plugins.Registration{
			{
				ClassName: "SiteFileInterface",
				Kind:      plugins.KindFile,
				New: func() (plugins.Interface, error) {
					return NewSiteFileInterface(), nil
				},
			},
		},
	}
}

// newDeviceSpacing lays devices out on a square grid sized by the
// lease area.
func newDeviceSpacing() (plugins.Interface, error) {
	return plugins.NewBuilder("Device Spacing").
		Inputs(
			plugins.Input(VarPowerRating),
			plugins.Input(VarSiteArea),
		).
		Outputs(VarDeviceCount, VarLayoutSpacing).
		Weight(10).
		Connect(func(_ context.Context, bag *plugins.DataBag) error {
			rating, err := floatValue(bag, VarPowerRating)
			if err != nil {
				return err
			}

			area, err := floatValue(bag, VarSiteArea)
			if err != nil {
				return err
			}

			// One device per 50 hectares, scaled down for large
			// machines.
			count := math.Max(1, math.Floor(area/(500000*rating)))
			spacing := math.Sqrt(area / count)

			bag.Set(VarDeviceCount, count)
			bag.Set(VarLayoutSpacing, spacing)

			return nil
		}).
		Build()
}

// newEnergyYield estimates the annual yield from the rated power and
// device count. The capacity factor defaults to 0.3 when unset.
func newEnergyYield() (plugins.Interface, error) {
	return plugins.NewBuilder("Energy Yield").
		Inputs(
			plugins.Input(VarPowerRating),
			plugins.Input(VarDeviceCount),
			plugins.Input(VarCapacityFactor),
		).
		Optional(VarCapacityFactor).
		Outputs(VarAnnualEnergy).
		Weight(20).
		Connect(func(_ context.Context, bag *plugins.DataBag) error {
			rating, err := floatValue(bag, VarPowerRating)
			if err != nil {
				return err
			}

			count, err := floatValue(bag, VarDeviceCount)
			if err != nil {
				return err
			}

			factor := 0.3
			if raw := bag.Get(VarCapacityFactor); raw != nil {
				factor, err = asFloat(VarCapacityFactor, raw)
				if err != nil {
					return err
				}
			}

			const hoursPerYear = 8766

			bag.Set(VarAnnualEnergy, rating*count*factor*hoursPerYear)

			return nil
		}).
		Build()
}

// newEnvironmentalImpact scores device density over the lease area.
func newEnvironmentalImpact() (plugins.Interface, error) {
	return plugins.NewBuilder("Environmental Impact").
		Inputs(
			plugins.Input(VarDeviceCount),
			plugins.Input(VarSiteArea),
		).
		Outputs(VarImpactScore).
		Connect(func(_ context.Context, bag *plugins.DataBag) error {
			count, err := floatValue(bag, VarDeviceCount)
			if err != nil {
				return err
			}

			area, err := floatValue(bag, VarSiteArea)
			if err != nil {
				return err
			}

			bag.Set(VarImpactScore, count/area*1e6)

			return nil
		}).
		Build()
}

// SiteFileInterface reads site properties from a JSON document, feeding
// the lease area and optional capacity factor into the system.
type SiteFileInterface struct {
	path string
}

// NewSiteFileInterface creates an unconfigured site file reader.
func NewSiteFileInterface() *SiteFileInterface {
	return &SiteFileInterface{}
}

func (i *SiteFileInterface) Name() string { return "Site Properties File" }

func (i *SiteFileInterface) Kind() plugins.Kind { return plugins.KindFile }

func (i *SiteFileInterface) DeclareInputs() []plugins.InputSpec { return nil }

func (i *SiteFileInterface) DeclareOutputs() []string {
	return []string{VarSiteArea, VarCapacityFactor}
}

func (i *SiteFileInterface) DeclareOptional() []string { return nil }

func (i *SiteFileInterface) DeclareIDMap() map[string]string { return nil }

func (i *SiteFileInterface) ValidExtensions() []string {
	return []string{".json"}
}

func (i *SiteFileInterface) SetFilePath(path string) { i.path = path }

func (i *SiteFileInterface) FilePath() string { return i.path }

// siteDocument is the on-disk form read by the site file interface.
type siteDocument struct {
	Area           float64  `json:"area"`
	CapacityFactor *float64 `json:"capacity_factor,omitempty"`
}

func (i *SiteFileInterface) Connect(_ context.Context,
	bag *plugins.DataBag) error {

	encoded, err := os.ReadFile(i.path)
	if err != nil {
		return fmt.Errorf("reading site file %q: %w", i.path, err)
	}

	var doc siteDocument
	if err := json.Unmarshal(encoded, &doc); err != nil {
		return fmt.Errorf("decoding site file %q: %w", i.path, err)
	}

	if err := bag.PutData(VarSiteArea, doc.Area); err != nil {
		return err
	}

	if doc.CapacityFactor != nil {
		if err := bag.PutData(VarCapacityFactor,
			*doc.CapacityFactor); err != nil {
			return err
		}
	}

	return nil
}

// floatValue reads a required numeric value from the bag.
func floatValue(bag *plugins.DataBag, id string) (float64, error) {
	raw := bag.Get(id)
	if raw == nil {
		return 0, fmt.Errorf("variable %s holds no data", id)
	}

	return asFloat(id, raw)
}

func asFloat(id string, raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("variable %s holds %T, expected a number",
			id, raw)
	}
}
