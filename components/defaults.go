package components

// Default field names are used by components to know the names of input and output fields.
var Defaults = struct {
	ChanField4CSVFileName string // the default map key that carries CSV file names produced by the writer.
	ChanField4FileName    string // the default map key that contains file names found in the S3 bucket, used by input Channels.
	ChanField4BucketName  string // the default map key that contains the bucket name.
	ChanField4BucketKey   string // the default map key that contains the object key within the bucket.
}{
	ChanField4CSVFileName: "#CSVFileName",
	ChanField4FileName:    "#DataFileName",
	ChanField4BucketName:  "#BucketName",
	ChanField4BucketKey:   "#BucketKey",
}
