package regions

// Region ids with special handling.
const (
	GlassID      = "full_hemisphere"
	CerebellumID = "cerebellum"
)

// MedialWallNames are parcellation names marking the medial wall or
// unlabeled cortex. Vertices carrying them are excluded from the frame
// centroid and the glass shell.
var MedialWallNames = []string{
	"Medial_wall",
	"Unknown",
	"unknown",
	"???",
	"corpuscallosum",
	"Background+FreeSurfer_Defined_Medial_Wall",
	"Medial Wall",
}

// Destrieux 2009 label sets. Overlap between regions is intentional: Broca's
// area sits inside the frontal lobe, Wernicke's inside the temporal lobe.
var corticalRegions = []Spec{
	{ID: "frontal_lobe", Labels: []string{
		"G_front_sup", "G_front_middle",
		"G_front_inf-Opercular", "G_front_inf-Orbital", "G_front_inf-Triangul",
		"G_and_S_transv_frontopol", "G_and_S_frontomargin",
		"G_orbital", "G_rectus", "G_subcallosal",
		"S_front_sup", "S_front_middle", "S_front_inf",
		"S_suborbital", "S_orbital-H_Shaped", "S_orbital_lateral",
		"S_orbital_med-olfact",
		"Lat_Fis-ant-Horizont", "Lat_Fis-ant-Vertical",
	}},
	{ID: "prefrontal_cortex", Labels: []string{
		"G_front_sup", "G_front_middle",
		"G_and_S_transv_frontopol", "G_and_S_frontomargin",
		"G_orbital", "G_rectus", "G_subcallosal",
		"S_orbital-H_Shaped", "S_suborbital", "S_orbital_med-olfact",
	}},
	{ID: "brocas_area", Labels: []string{
		"G_front_inf-Opercular", "G_front_inf-Triangul", "G_front_inf-Orbital",
		"Lat_Fis-ant-Horizont", "Lat_Fis-ant-Vertical",
	}},
	{ID: "motor_cortex", Labels: []string{
		"G_precentral", "G_and_S_paracentral",
		"S_central", "S_precentral-inf-part", "S_precentral-sup-part",
	}},
	{ID: "parietal_lobe", Labels: []string{
		"G_parietal_sup", "G_parietal_inf-Angul", "G_parietal_inf-Supramar",
		"G_precuneus",
		"S_intrapariet_and_P_trans", "S_parieto_occipital",
		"S_subparietal", "S_postcentral",
	}},
	{ID: "somatosensory_cortex", Labels: []string{
		"G_postcentral",
		"S_postcentral", "S_central",
	}},
	{ID: "temporal_lobe", Labels: []string{
		"G_temp_sup-Lateral", "G_temp_sup-Plan_polar",
		"G_temp_sup-Plan_tempo", "G_temp_sup-G_T_transv",
		"G_temporal_middle", "G_temporal_inf",
		"G_oc-temp_med-Parahip", "G_oc-temp_lat-fusifor",
		"Pole_temporal",
		"S_temporal_sup", "S_temporal_inf", "S_temporal_transverse",
		"Lat_Fis-post",
		"S_oc-temp_lat", "S_oc-temp_med_and_Lingual",
		"S_collat_transv_ant", "S_collat_transv_post",
	}},
	{ID: "wernickes_area", Labels: []string{
		"G_temp_sup-Plan_tempo", "G_temp_sup-Lateral",
		"Lat_Fis-post",
	}},
	{ID: "occipital_lobe", Labels: []string{
		"G_cuneus", "G_occipital_sup", "G_occipital_middle",
		"G_oc-temp_lat-fusifor", "G_oc-temp_med-Lingual",
		"G_and_S_occipital_inf", "Pole_occipital",
		"S_calcarine", "S_oc_middle_and_Lunatus",
		"S_oc_sup_and_transversal", "S_oc-temp_med_and_Lingual",
		"S_occipital_ant", "S_parieto_occipital",
	}},
	{ID: "cingulate_gyrus", Labels: []string{
		"G_and_S_cingul-Ant", "G_and_S_cingul-Mid-Ant",
		"G_and_S_cingul-Mid-Post",
		"G_cingul-Post-dorsal", "G_cingul-Post-ventral",
		"S_cingul-Marginalis", "S_pericallosal",
	}},
	{ID: "medial_frontal", Labels: []string{
		"G_and_S_frontomargin", "G_and_S_transv_frontopol",
		"G_rectus", "G_subcallosal",
		"S_suborbital", "S_orbital_med-olfact",
	}},
}

// Harvard-Oxford subcortical candidates, tried in order. Wording differs
// between atlas releases.
var subcorticalRegions = []Spec{
	{ID: "thalamus", Labels: []string{"Left Thalamus", "Left Thalamus Proper", "Thalamus"}},
	{ID: "hippocampus", Labels: []string{"Left Hippocampus", "Hippocampus"}},
	{ID: "amygdala", Labels: []string{"Left Amygdala", "Amygdala"}},
	{ID: "caudate", Labels: []string{"Left Caudate", "Caudate"}},
	{ID: "putamen", Labels: []string{"Left Putamen", "Putamen"}},
	{ID: "globus_pallidus", Labels: []string{"Left Pallidum", "Pallidum", "Left Globus Pallidus"}},
	{ID: "brainstem", Labels: []string{"Brain-Stem", "Brain Stem", "Brainstem"}},
}

func init() {
	for i := range corticalRegions {
		corticalRegions[i].Category = Cortical
		corticalRegions[i].Resolution = ResolveExact
	}
	for i := range subcorticalRegions {
		subcorticalRegions[i].Category = Subcortical
		subcorticalRegions[i].Resolution = ResolveClosest
	}
}

// CorticalRegions returns the surface regions carved from the parcellation.
func CorticalRegions() []Spec {
	return cloneSpecs(corticalRegions)
}

// GlassShell returns the whole-hemisphere shell: every non-medial vertex.
func GlassShell() Spec {
	return Spec{
		ID:         GlassID,
		Category:   Glass,
		Labels:     append([]string(nil), MedialWallNames...),
		Resolution: ResolveNonMedial,
	}
}

// SubcorticalRegions returns the structures extracted from the subcortical
// volume atlas.
func SubcorticalRegions() []Spec {
	return cloneSpecs(subcorticalRegions)
}

// Cerebellum returns the merged cerebellum: every cerebellar and vermis
// parcel of the volume atlas.
func Cerebellum() Spec {
	return Spec{
		ID:         CerebellumID,
		Category:   Cerebellar,
		Labels:     []string{"cerebel", "vermis"},
		Resolution: ResolveByKeyword,
	}
}

// Catalog returns every configured region in stage order.
func Catalog() []Spec {
	all := CorticalRegions()
	all = append(all, GlassShell())
	all = append(all, SubcorticalRegions()...)
	return append(all, Cerebellum())
}

// ExpectedIDs returns the id of every configured region in stage order.
func ExpectedIDs() []string {
	specs := Catalog()
	ids := make([]string, len(specs))
	for i, s := range specs {
		ids[i] = s.ID
	}
	return ids
}

func cloneSpecs(specs []Spec) []Spec {
	out := make([]Spec, len(specs))
	for i, s := range specs {
		s.Labels = append([]string(nil), s.Labels...)
		out[i] = s
	}
	return out
}
