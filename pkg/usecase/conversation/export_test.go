package conversation

var CompressHistory = compressHistory

const SummaryHeader = summaryHeader

var ErrNothingToCompress = errNothingToCompress
