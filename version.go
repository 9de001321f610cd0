package tensorpipe

// Version of the tensorpipe module.
const Version = "0.1.0"
