package tiger

// Reporter receives progress events from a load run. Implementations print
// them for a human; they must not block.
type Reporter interface {
	DatasetStart(d Dataset, files int)
	Loading(f ResolvedFile, table string, mode WriteMode)
	Fallback(f ResolvedFile)
	MissingCompanions(f ResolvedFile, missing []string)
	NotFound(name string)
	Loaded(res FileResult)
	Failed(res FileResult)
}

// NopReporter discards all events.
type NopReporter struct{}

func (NopReporter) DatasetStart(Dataset, int)                {}
func (NopReporter) Loading(ResolvedFile, string, WriteMode)  {}
func (NopReporter) Fallback(ResolvedFile)                    {}
func (NopReporter) MissingCompanions(ResolvedFile, []string) {}
func (NopReporter) NotFound(string)                          {}
func (NopReporter) Loaded(FileResult)                        {}
func (NopReporter) Failed(FileResult)                        {}
